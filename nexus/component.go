package nexus

import (
	"io"
	"strings"
)

// Asset is a single file of a component together with its upload attributes.
type Asset struct {
	Filename   string
	Attributes map[string]string
	Data       io.Reader
}

func NewAsset(filename string, data io.Reader) (*Asset, error) {
	if err := checkArgument(!isBlank(filename), "asset filename is required"); err != nil {
		return nil, err
	}
	if err := checkArgument(data != nil, "asset data for '%s' is required", filename); err != nil {
		return nil, err
	}
	return &Asset{Filename: filename, Attributes: map[string]string{}, Data: data}, nil
}

func (a *Asset) AddAttribute(name, value string) error {
	if err := validateAttribute(name, value); err != nil {
		return err
	}
	if err := checkArgument(!strings.Contains(name, "."), "asset attribute name '%s' may not contain '.'", name); err != nil {
		return err
	}
	a.Attributes[name] = value
	return nil
}

// Close closes the asset data when it is closable.
func (a *Asset) Close() error {
	if c, ok := a.Data.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type Component struct {
	Format     string
	Attributes map[string]string
	Assets     []*Asset
}

func NewComponent(format string) *Component {
	return &Component{Format: format, Attributes: map[string]string{}}
}

// AddAttribute accepts both bare names and names already carrying the "<format>." prefix.
func (c *Component) AddAttribute(name, value string) error {
	if err := validateAttribute(name, value); err != nil {
		return err
	}
	bare := strings.TrimPrefix(name, c.formatPrefix())
	if err := checkArgument(bare != "" && !strings.Contains(bare, "."), "component attribute name '%s' may not contain '.'", name); err != nil {
		return err
	}
	c.Attributes[name] = value
	return nil
}

func (c *Component) AddAsset(asset *Asset) error {
	if err := checkArgument(asset != nil, "asset is required"); err != nil {
		return err
	}
	c.Assets = append(c.Assets, asset)
	return nil
}

// Close closes every asset, returning the first error encountered.
func (c *Component) Close() error {
	var first error
	for _, asset := range c.Assets {
		if err := asset.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Component) formatPrefix() string {
	if c.Format == "" {
		return ""
	}
	return c.Format + "."
}

func validateAttribute(name, value string) error {
	if err := checkArgument(!isBlank(name), "attribute name is required"); err != nil {
		return err
	}
	return checkArgument(!isBlank(value), "value for attribute '%s' is required", name)
}
