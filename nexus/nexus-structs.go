package nexus

import (
	"encoding/json"
	"strings"
	"time"
)

type Repository struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Type   string `json:"type"`
	Url    string `json:"url"`
}

type NxrmVersion struct {
	Version string `json:"version"`
	Edition string `json:"edition"`
}

// ComponentInfo identifies a component reported back by the staging and tagging endpoints.
type ComponentInfo struct {
	Group   string `json:"group,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

func (c ComponentInfo) String() string {
	var parts []string
	if c.Group != "" {
		parts = append(parts, "group: "+c.Group)
	}
	if c.Name != "" {
		parts = append(parts, "name: "+c.Name)
	}
	if c.Version != "" {
		parts = append(parts, "version: "+c.Version)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// RestResponse is the envelope NXRM wraps staging, tagging and error payloads in.
type RestResponse struct {
	Status  int                        `json:"status"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

type Tag struct {
	Name         string                 `json:"name"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
	FirstCreated *time.Time             `json:"firstCreated,omitempty"`
	LastUpdated  *time.Time             `json:"lastUpdated,omitempty"`
}

func NewTag(name string, attributes map[string]interface{}) (*Tag, error) {
	if err := checkArgument(!isBlank(name), "tag name is required"); err != nil {
		return nil, err
	}
	return &Tag{Name: name, Attributes: attributes}, nil
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name         string                 `json:"name"`
		Attributes   map[string]interface{} `json:"attributes"`
		FirstCreated string                 `json:"firstCreated"`
		LastUpdated  string                 `json:"lastUpdated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Name = raw.Name
	t.Attributes = raw.Attributes
	var err error
	if t.FirstCreated, err = parseTimestamp(raw.FirstCreated); err != nil {
		return err
	}
	t.LastUpdated, err = parseTimestamp(raw.LastUpdated)
	return err
}

// NXRM has emitted timestamps with and without zone offsets and fractional seconds across releases.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999Z0700",
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	var firstErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return &parsed, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

type SearchResponse struct {
	Items             []SearchItem `json:"items"`
	ContinuationToken *string      `json:"continuationToken"`
}

type SearchItemAsset struct {
	Id          string            `json:"id,omitempty"`
	Path        string            `json:"path,omitempty"`
	DownloadUrl string            `json:"downloadUrl,omitempty"`
	Repository  string            `json:"repository,omitempty"`
	Format      string            `json:"format,omitempty"`
	FileSize    int64             `json:"fileSize,omitempty"`
	Checksum    map[string]string `json:"checksum,omitempty"`
}

type SearchItem struct {
	Id         string            `json:"id,omitempty"`
	Repository string            `json:"repository,omitempty"`
	Format     string            `json:"format,omitempty"`
	Group      string            `json:"group,omitempty"`
	Name       string            `json:"name,omitempty"`
	Version    string            `json:"version,omitempty"`
	Assets     []SearchItemAsset `json:"assets,omitempty"`
}

func (i SearchItem) ComponentInfo() ComponentInfo {
	return ComponentInfo{Group: i.Group, Name: i.Name, Version: i.Version}
}
