package problem

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"
)

//go:embed problems.yaml
var defaultCatalog []byte

// Catalog is an immutable id -> Problem mapping built once at startup and
// shared read-only across requests.
type Catalog struct {
	problems map[string]Problem
	ids      []string
}

// Summary is the metadata exposed by GET /problems. It carries no test data
// and no expected answers.
type Summary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	TestCaseCount int    `json:"testCaseCount"`
}

// Load builds a catalog from the YAML file at path, or from the embedded
// default catalog when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read problem catalog: %w", err)
		}
		data = b
	}
	var m map[string]Problem
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse problem catalog: %w", err)
	}
	return New(m)
}

// New validates the given problems and builds a catalog from them.
func New(problems map[string]Problem) (*Catalog, error) {
	if len(problems) == 0 {
		return nil, fmt.Errorf("problem catalog is empty")
	}
	m := make(map[string]Problem, len(problems))
	ids := make([]string, 0, len(problems))
	for id, p := range problems {
		if err := p.validate(id); err != nil {
			return nil, err
		}
		if p.Compare == "" {
			p.Compare = CompareExact
		}
		m[id] = p
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Catalog{problems: m, ids: ids}, nil
}

// Get looks up a problem by id. An unknown id is a normal validation
// failure for the caller, not an error.
func (c *Catalog) Get(id string) (Problem, bool) {
	p, ok := c.problems[id]
	return p, ok
}

// Len returns the number of problems in the catalog.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// Summaries lists catalog metadata sorted by problem id.
func (c *Catalog) Summaries() []Summary {
	s := make([]Summary, 0, len(c.ids))
	for _, id := range c.ids {
		p := c.problems[id]
		s = append(s, Summary{
			ID:            id,
			Title:         p.Title,
			TestCaseCount: len(p.TestCases),
		})
	}
	return s
}
