// Package catalog implements the read-only store of test case definitions.
// The catalog is decoded once from YAML and never mutated afterwards; every
// accessor returns copies.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

//go:embed catalog.yaml
var seedYAML []byte

// Catalog holds the test cases in authoring order.
type Catalog struct {
	cases []types.TestCase
	index map[string]int
}

// catalogFile is the on-disk shape of catalog.yaml.
type catalogFile struct {
	Cases []types.TestCase `yaml:"cases"`
}

// Default returns the catalog built from the embedded seed data.
func Default() (*Catalog, error) {
	return Load(seedYAML)
}

// MustDefault is like Default but panics if the embedded seed is invalid.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load decodes and validates a catalog document. IDs must be unique, every
// case needs a known category and priority, and default steps must be
// numbered 1..N. Violations wrap types.ErrInvalidCatalog.
func Load(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decoding yaml: %v", types.ErrInvalidCatalog, err)
	}
	return New(f.Cases)
}

// New builds a catalog from cases after validating them. The slice is
// copied; later changes by the caller are not observed.
func New(cases []types.TestCase) (*Catalog, error) {
	c := &Catalog{
		cases: make([]types.TestCase, 0, len(cases)),
		index: make(map[string]int, len(cases)),
	}
	for i, tc := range cases {
		if tc.ID == "" {
			return nil, fmt.Errorf("%w: case %d has no id", types.ErrInvalidCatalog, i)
		}
		if c.Has(tc.ID) {
			return nil, fmt.Errorf("%w: duplicate id %s", types.ErrInvalidCatalog, tc.ID)
		}
		if !types.ValidCategory(tc.Category) {
			return nil, fmt.Errorf("%w: %s has unknown category %q", types.ErrInvalidCatalog, tc.ID, tc.Category)
		}
		if !types.ValidPriority(tc.Priority) {
			return nil, fmt.Errorf("%w: %s has unknown priority %q", types.ErrInvalidCatalog, tc.ID, tc.Priority)
		}
		for n, s := range tc.DefaultSteps {
			if s.Number != n+1 {
				return nil, fmt.Errorf("%w: %s step %d is numbered %d", types.ErrInvalidCatalog, tc.ID, n+1, s.Number)
			}
		}
		c.index[tc.ID] = len(c.cases)
		c.cases = append(c.cases, tc.Clone())
	}
	return c, nil
}

// ListAll returns every test case in authoring order.
func (c *Catalog) ListAll() []types.TestCase {
	out := make([]types.TestCase, len(c.cases))
	for i, tc := range c.cases {
		out[i] = tc.Clone()
	}
	return out
}

// Get returns the test case with the given ID.
// Returns an error wrapping types.ErrNotFound if the ID is absent.
func (c *Catalog) Get(id string) (types.TestCase, error) {
	i, ok := c.index[id]
	if !ok {
		return types.TestCase{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return c.cases[i].Clone(), nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Len returns the number of test cases.
func (c *Catalog) Len() int {
	return len(c.cases)
}

// Categories returns the categories that have at least one case, in the
// order of types.Categories.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	for _, tc := range c.cases {
		seen[tc.Category] = true
	}
	var out []string
	for _, cat := range types.Categories {
		if seen[cat] {
			out = append(out, cat)
		}
	}
	return out
}
