package ontology

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/matsearch/internal/domain/material"
)

//go:embed ontologies.yaml
var builtin []byte

type fileOntology struct {
	Synonyms []struct {
		Term     string   `yaml:"term"`
		Synonyms []string `yaml:"synonyms"`
	} `yaml:"synonyms"`
	Hierarchy []struct {
		Category string   `yaml:"category"`
		Members  []string `yaml:"members"`
	} `yaml:"hierarchy"`
	Attributes []struct {
		Name       string  `yaml:"name"`
		Importance float64 `yaml:"importance"`
	} `yaml:"attributes"`
	Filters []struct {
		Name    string  `yaml:"name"`
		Default *string `yaml:"default"`
	} `yaml:"filters"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Load(builtin)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read ontology file: %w", err)
	}
	return Load(data)
}

// Load parses a YAML catalog. Attribute names are resolved against the
// material attribute registry; unknown names fail the load. The general
// domain is mandatory since it backs every fallback.
func Load(data []byte) (*Catalog, error) {
	var raw map[string]fileOntology
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ontology: %w", err)
	}

	c := &Catalog{byType: make(map[Type]*Ontology, len(raw))}
	for name, fo := range raw {
		t, err := Parse(name)
		if err != nil {
			return nil, err
		}
		o, err := resolve(t, fo)
		if err != nil {
			return nil, fmt.Errorf("ontology %s: %w", t, err)
		}
		c.byType[t] = o
	}
	if _, ok := c.byType[General]; !ok {
		return nil, fmt.Errorf("ontology %s is required", General)
	}
	return c, nil
}

func resolve(t Type, fo fileOntology) (*Ontology, error) {
	synonyms := make([]Synonym, 0, len(fo.Synonyms))
	for _, s := range fo.Synonyms {
		if s.Term == "" {
			return nil, fmt.Errorf("synonym entry without term")
		}
		synonyms = append(synonyms, Synonym{Term: s.Term, Synonyms: lowerAll(s.Synonyms)})
	}

	hierarchy := make([]Category, 0, len(fo.Hierarchy))
	for _, h := range fo.Hierarchy {
		if h.Category == "" {
			return nil, fmt.Errorf("hierarchy entry without category")
		}
		hierarchy = append(hierarchy, Category{Name: h.Category, Members: lowerAll(h.Members)})
	}

	seen := make(map[material.Attribute]bool, len(fo.Attributes))
	weights := make([]Weight, 0, len(fo.Attributes))
	for _, a := range fo.Attributes {
		attr, get, err := material.Lookup(a.Name)
		if err != nil {
			return nil, err
		}
		if seen[attr] {
			return nil, fmt.Errorf("duplicate attribute %q", attr)
		}
		if a.Importance < 0 || a.Importance > 1 {
			return nil, fmt.Errorf("attribute %q: importance must be in [0,1], got %v", attr, a.Importance)
		}
		seen[attr] = true
		weights = append(weights, Weight{Attribute: attr, Importance: a.Importance, Get: get})
	}

	filters := make([]FilterDefault, 0, len(fo.Filters))
	for _, f := range fo.Filters {
		attr, _, err := material.Lookup(f.Name)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		filters = append(filters, FilterDefault{Attribute: attr, Value: f.Default})
	}

	return newOntology(t, synonyms, hierarchy, weights, filters), nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
