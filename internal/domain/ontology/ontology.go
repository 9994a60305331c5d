// Package ontology holds per-domain vocabularies and attribute weights.
// Ontologies are immutable once loaded.
package ontology

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/matsearch/internal/domain/material"
)

// Type is an industry vertical.
type Type string

// Supported domains.
const (
	Architecture   Type = "architecture"
	InteriorDesign Type = "interior_design"
	Construction   Type = "construction"
	Manufacturing  Type = "manufacturing"
	Retail         Type = "retail"
	Education      Type = "education"
	General        Type = "general"
)

// Types lists every supported domain.
var Types = []Type{Architecture, InteriorDesign, Construction, Manufacturing, Retail, Education, General}

// IsValid checks if the domain is one of the supported values.
func (t Type) IsValid() bool { return slices.Contains(Types, t) }

// Synonym maps a term to its ordered synonyms.
type Synonym struct {
	Term     string
	Synonyms []string
}

// Category maps a category name to its ordered members.
type Category struct {
	Name    string
	Members []string
}

// Weight is an attribute with its importance in [0,1] and a resolved accessor.
type Weight struct {
	Attribute  material.Attribute
	Importance float64
	Get        material.Accessor
}

// FilterDefault is a domain filter; a nil Value means no default is applied.
type FilterDefault struct {
	Attribute material.Attribute
	Value     *string
}

// Ontology is the vocabulary and weighting table of one domain.
type Ontology struct {
	domain     Type
	synonyms   []Synonym
	hierarchy  []Category
	weights    []Weight
	filters    []FilterDefault
	synByTerm  map[string]int
	catByName  map[string]int
	byPriority []Weight
}

func newOntology(domain Type, synonyms []Synonym, hierarchy []Category, weights []Weight, filters []FilterDefault) *Ontology {
	o := &Ontology{
		domain:    domain,
		synonyms:  synonyms,
		hierarchy: hierarchy,
		weights:   weights,
		filters:   filters,
		synByTerm: make(map[string]int, len(synonyms)),
		catByName: make(map[string]int, len(hierarchy)),
	}
	for i, s := range synonyms {
		o.synByTerm[strings.ToLower(s.Term)] = i
	}
	for i, c := range hierarchy {
		o.catByName[strings.ToLower(c.Name)] = i
	}
	o.byPriority = slices.Clone(weights)
	slices.SortStableFunc(o.byPriority, func(a, b Weight) int {
		switch {
		case a.Importance > b.Importance:
			return -1
		case a.Importance < b.Importance:
			return 1
		default:
			return 0
		}
	})
	return o
}

// Domain returns the vertical this ontology covers.
func (o *Ontology) Domain() Type { return o.domain }

// Synonyms returns synonyms of a lowercase token, if it is a synonym key.
func (o *Ontology) Synonyms(token string) ([]string, bool) {
	i, ok := o.synByTerm[token]
	if !ok {
		return nil, false
	}
	return o.synonyms[i].Synonyms, true
}

// Members returns members of a lowercase category name.
func (o *Ontology) Members(category string) ([]string, bool) {
	i, ok := o.catByName[category]
	if !ok {
		return nil, false
	}
	return o.hierarchy[i].Members, true
}

// Weights returns attributes in declaration order.
func (o *Ontology) Weights() []Weight { return o.weights }

// ByImportance returns attributes sorted by importance, descending; ties keep declaration order.
func (o *Ontology) ByImportance() []Weight { return o.byPriority }

// Filters returns the domain filter defaults.
func (o *Ontology) Filters() []FilterDefault { return o.filters }

// Catalog is the set of loaded ontologies.
type Catalog struct {
	byType map[Type]*Ontology
}

// Get returns the ontology of t, falling back to General.
func (c *Catalog) Get(t Type) *Ontology {
	if o, ok := c.byType[t]; ok {
		return o
	}
	return c.byType[General]
}

// Lookup returns the ontology of t without fallback.
func (c *Catalog) Lookup(t Type) (*Ontology, bool) {
	o, ok := c.byType[t]
	return o, ok
}

// Parse resolves a domain type from user input.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown domain %q", s)
	}
	return t, nil
}
