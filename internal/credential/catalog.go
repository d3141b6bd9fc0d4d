package credential

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Spec describes a credential to the user.
type Spec struct {
	Description string `yaml:"description" json:"description"`
	URL         string `yaml:"url,omitempty" json:"url,omitempty"`
	Hint        string `yaml:"hint,omitempty" json:"hint,omitempty"`
	// Required marks a hard-required credential: a required service without
	// it aborts the run.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`
	// Plain values are identifiers, not secrets. They are echoed while typing
	// and not redacted.
	Plain bool `yaml:"plain,omitempty" json:"plain,omitempty"`
}

// Catalog maps variable names to their descriptions.
type Catalog map[string]Spec

// DefaultCatalog returns the built-in descriptions.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded credential catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing credential catalog: %w", err)
	}
	if c == nil {
		c = Catalog{}
	}
	return c, nil
}

// With returns a copy of c with overrides applied field by field. Empty
// override fields keep the base value.
func (c Catalog) With(overrides Catalog) Catalog {
	out := make(Catalog, len(c)+len(overrides))
	for k, v := range c {
		out[k] = v
	}
	for k, o := range overrides {
		base := out[k]
		if o.Description != "" {
			base.Description = o.Description
		}
		if o.URL != "" {
			base.URL = o.URL
		}
		if o.Hint != "" {
			base.Hint = o.Hint
		}
		if o.Required {
			base.Required = true
		}
		if o.Plain {
			base.Plain = true
		}
		out[k] = base
	}
	return out
}

// Lookup returns the spec for name, with a generic description for unknown
// names.
func (c Catalog) Lookup(name string) Spec {
	if s, ok := c[name]; ok {
		return s
	}
	return Spec{Description: fmt.Sprintf("Value for %s", name)}
}

// HardRequired returns the names among names marked Required, sorted.
func (c Catalog) HardRequired(names []string) []string {
	var out []string
	for _, n := range names {
		if c[n].Required {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
