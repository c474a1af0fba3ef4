// Package catalog holds the approved reference catalog and the claim pattern table.
// Both are versioned configuration, built into the binary and immutable once loaded.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/rxwizard/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog marks a catalog that cannot be used: a configuration defect, not a runtime condition
var ErrInvalidCatalog = errors.New("invalid reference catalog")

//go:embed default.yaml
var defaultYAML []byte

// Reference is one approved citation
type Reference struct {
	Number   int    `yaml:"number" json:"number"`
	Citation string `yaml:"citation" json:"citation"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
}

// Catalog is the immutable set of approved references plus the claim pattern table
type Catalog struct {
	version  string
	product  string
	base     int
	refs     map[int]Reference
	numbers  []int
	patterns []model.ClaimPattern
}

type fileFormat struct {
	Version       string          `yaml:"version"`
	Product       string          `yaml:"product"`
	BaseReference int             `yaml:"base_reference"`
	References    []Reference     `yaml:"references"`
	ClaimPatterns []patternFormat `yaml:"claim_patterns"`
}

type patternFormat struct {
	Pattern     string `yaml:"pattern"`
	Refs        []int  `yaml:"refs"`
	Priority    int    `yaml:"priority"`
	Description string `yaml:"description"`
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultYAML)
})

// Default returns the catalog built into the binary
func Default() (*Catalog, error) {
	return loadDefault()
}

// Load reads a catalog file; an empty path selects the built-in catalog
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}

	patterns := make([]model.ClaimPattern, 0, len(f.ClaimPatterns))
	for i, p := range f.ClaimPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: claim pattern %d (%s): %v", ErrInvalidCatalog, i, p.Description, err)
		}
		patterns = append(patterns, model.ClaimPattern{
			Pattern:     re,
			Refs:        append([]int(nil), p.Refs...),
			Priority:    p.Priority,
			Description: p.Description,
		})
	}

	return New(f.Version, f.Product, f.BaseReference, f.References, patterns)
}

// New builds a catalog and checks its internal consistency:
// the base reference and every pattern reference must be catalog entries.
func New(version, product string, base int, refs []Reference, patterns []model.ClaimPattern) (*Catalog, error) {
	c := &Catalog{
		version: version,
		product: product,
		base:    base,
		refs:    make(map[int]Reference, len(refs)),
	}

	for _, r := range refs {
		if r.Number <= 0 {
			return nil, fmt.Errorf("%w: reference number must be positive, got %d", ErrInvalidCatalog, r.Number)
		}
		if _, dup := c.refs[r.Number]; dup {
			return nil, fmt.Errorf("%w: duplicate reference %d", ErrInvalidCatalog, r.Number)
		}
		if strings.TrimSpace(r.Citation) == "" {
			return nil, fmt.Errorf("%w: reference %d has no citation text", ErrInvalidCatalog, r.Number)
		}
		c.refs[r.Number] = r
		c.numbers = append(c.numbers, r.Number)
	}
	sort.Ints(c.numbers)

	if _, ok := c.refs[base]; !ok {
		return nil, fmt.Errorf("%w: base reference %d is not in the catalog", ErrInvalidCatalog, base)
	}

	for _, p := range patterns {
		if p.Pattern == nil {
			return nil, fmt.Errorf("%w: claim pattern %q has no regex", ErrInvalidCatalog, p.Description)
		}
		if len(p.Refs) == 0 {
			return nil, fmt.Errorf("%w: claim pattern %q requires no references", ErrInvalidCatalog, p.Description)
		}
		for _, n := range p.Refs {
			if _, ok := c.refs[n]; !ok {
				return nil, fmt.Errorf("%w: claim pattern %q requires unknown reference %d", ErrInvalidCatalog, p.Description, n)
			}
		}
		c.patterns = append(c.patterns, model.ClaimPattern{
			Pattern:     p.Pattern,
			Refs:        append([]int(nil), p.Refs...),
			Priority:    p.Priority,
			Description: p.Description,
		})
	}

	return c, nil
}

// Version returns the catalog version label
func (c *Catalog) Version() string { return c.version }

// Product returns the product the catalog covers
func (c *Catalog) Product() string { return c.product }

// Base returns the reference every document must cite
func (c *Catalog) Base() int { return c.base }

// Has reports whether n is an approved reference
func (c *Catalog) Has(n int) bool {
	_, ok := c.refs[n]
	return ok
}

// Citation returns the citation text for n
func (c *Catalog) Citation(n int) (string, bool) {
	r, ok := c.refs[n]
	return r.Citation, ok
}

// Numbers returns every reference number, ascending
func (c *Catalog) Numbers() []int {
	return append([]int(nil), c.numbers...)
}

// References returns every entry, ordered by number
func (c *Catalog) References() []Reference {
	out := make([]Reference, 0, len(c.numbers))
	for _, n := range c.numbers {
		out = append(out, c.refs[n])
	}
	return out
}

// Patterns returns a copy of the claim pattern table in declaration order
func (c *Catalog) Patterns() []model.ClaimPattern {
	out := make([]model.ClaimPattern, len(c.patterns))
	for i, p := range c.patterns {
		p.Refs = append([]int(nil), p.Refs...)
		out[i] = p
	}
	return out
}

// Unknown returns the numbers in refs that the catalog does not define, ascending
func (c *Catalog) Unknown(refs []int) []int {
	var unknown []int
	for _, n := range refs {
		if !c.Has(n) {
			unknown = append(unknown, n)
		}
	}
	sort.Ints(unknown)
	return unknown
}
