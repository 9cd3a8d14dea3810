// Package allergen holds the allergen catalog and flags selected allergens
// in recognized label text.
package allergen

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed allergens.yaml
var catalogData []byte

// Category is a named group of allergen items, such as "Dairy".
type Category struct {
	Name  string   `yaml:"name" json:"name"`
	Items []string `yaml:"items" json:"items"`
}

// Catalog is the ordered list of allergen categories.
type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It is parsed once and shared, so
// callers must not modify it.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(catalogData)
	})
	return defaultCatalog, defaultErr
}

// Parse decodes a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse allergen catalog: %w", err)
	}
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("allergen category %d has no name", i)
		}
	}
	return &c, nil
}

// Category looks up a category by name, ignoring case.
func (c *Catalog) Category(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if strings.EqualFold(cat.Name, strings.TrimSpace(name)) {
			return cat, true
		}
	}
	return Category{}, false
}

// Items returns every item across all categories, without duplicates, in
// catalog order.
func (c *Catalog) Items() []string {
	var out []string
	seen := make(map[string]bool)
	for _, cat := range c.Categories {
		for _, item := range cat.Items {
			key := strings.ToLower(item)
			if !seen[key] {
				seen[key] = true
				out = append(out, item)
			}
		}
	}
	return out
}

// Expand resolves a selection into item names. Entries naming a category
// are replaced by its items; anything else is kept as a custom allergen.
func (c *Catalog) Expand(selection []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			out = append(out, name)
		}
	}

	for _, name := range selection {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if cat, ok := c.Category(name); ok {
			for _, item := range cat.Items {
				add(item)
			}
			continue
		}
		add(name)
	}
	return out
}
