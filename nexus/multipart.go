package nexus

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
)

// uploadForm holds an encoded multipart/form-data body for the components endpoint.
type uploadForm struct {
	body        *bytes.Buffer
	contentType string
}

func newUploadForm(component *Component, tag string) (*uploadForm, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	prefix := component.formatPrefix()

	for _, name := range sortedKeys(component.Attributes) {
		field := name
		if !strings.HasPrefix(name, prefix) {
			field = prefix + name
		}
		if err := w.WriteField(field, component.Attributes[name]); err != nil {
			return nil, err
		}
	}

	for i, asset := range component.Assets {
		assetField := fmt.Sprintf("%sasset%d", prefix, i+1)
		if err := writeFilePart(w, assetField, asset); err != nil {
			return nil, err
		}
		for _, name := range sortedKeys(asset.Attributes) {
			if err := w.WriteField(assetField+"."+name, asset.Attributes[name]); err != nil {
				return nil, err
			}
		}
	}

	if tag != "" {
		if err := w.WriteField(prefix+"tag", tag); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return &uploadForm{body: body, contentType: w.FormDataContentType()}, nil
}

func writeFilePart(w *multipart.Writer, field string, asset *Asset) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(asset.Filename)))
	h.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err = io.Copy(part, asset.Data); err != nil {
		return fmt.Errorf("failed to read asset %s: %w", asset.Filename, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
