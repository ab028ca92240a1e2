// Package pools holds the value pools the synthetic record generator draws
// from. Pools are data: the default set is embedded, and any YAML document
// with the same shape can replace it.
package pools

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_pools.yaml
var defaultDocument []byte

// Placeholder marks a numeric slot in a URL template pattern.
const Placeholder = "{}"

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// URLTemplate is a source URL pattern with one IntRange per placeholder.
type URLTemplate struct {
	Pattern string     `yaml:"pattern"`
	Params  []IntRange `yaml:"params"`
}

// CountsPool feeds the optional counts annotation.
type CountsPool struct {
	Actions   []string `yaml:"actions"`
	Locations []string `yaml:"locations"`
}

// Pools is the full set of generator inputs.
type Pools struct {
	Themes        []string      `yaml:"themes"`
	Locations     []string      `yaml:"locations"`
	Persons       []string      `yaml:"persons"`
	Organizations []string      `yaml:"organizations"`
	Sources       []string      `yaml:"sources"`
	URLTemplates  []URLTemplate `yaml:"url_templates"`
	Counts        CountsPool    `yaml:"counts"`
	CameoPrefixes []int         `yaml:"cameo_prefixes"`
}

// Default returns the embedded pool set.
func Default() (*Pools, error) {
	return Parse(defaultDocument)
}

// Load reads a pool document from path. An empty path yields the defaults.
func Load(path string) (*Pools, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pools file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a pool document.
func Parse(data []byte) (*Pools, error) {
	var p Pools
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pools: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every pool can be sampled.
func (p *Pools) Validate() error {
	nonEmpty := map[string][]string{
		"themes":           p.Themes,
		"persons":          p.Persons,
		"organizations":    p.Organizations,
		"sources":          p.Sources,
		"counts.actions":   p.Counts.Actions,
		"counts.locations": p.Counts.Locations,
	}
	for name, pool := range nonEmpty {
		if len(pool) == 0 {
			return fmt.Errorf("pool %s is empty", name)
		}
	}
	if len(p.Locations) < 2 {
		return fmt.Errorf("pool locations needs at least 2 entries, has %d", len(p.Locations))
	}
	if len(p.CameoPrefixes) == 0 {
		return fmt.Errorf("pool cameo_prefixes is empty")
	}
	for _, prefix := range p.CameoPrefixes {
		if prefix < 1000 || prefix > 9999 {
			return fmt.Errorf("cameo prefix %d is not 4 digits", prefix)
		}
	}
	if len(p.URLTemplates) == 0 {
		return fmt.Errorf("pool url_templates is empty")
	}
	for _, t := range p.URLTemplates {
		if n := strings.Count(t.Pattern, Placeholder); n != len(t.Params) {
			return fmt.Errorf("url template %q has %d placeholders but %d params", t.Pattern, n, len(t.Params))
		}
		for _, r := range t.Params {
			if r.Max < r.Min {
				return fmt.Errorf("url template %q has inverted range [%d, %d]", t.Pattern, r.Min, r.Max)
			}
		}
	}
	return nil
}
