// Package ranking expands queries and re-ranks materials with a domain ontology.
package ranking

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/ontology"
	"github.com/kailas-cloud/matsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
)

// Expansion and insight limits.
const (
	MaxSynonymsPerTerm    = 2
	MaxMembersPerCategory = 3
	MaxAlternatives       = 2
	MaxPrimaryReasons     = 2

	KeyAttributeImportance   = 0.7
	DifferentiatorImportance = 0.6

	PriorWeight  = 0.7
	DomainWeight = 0.3

	NoDistinction = "Alternative option"
)

// Tokenize splits a query into lowercase words. Hyphens stay inside words.
func Tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// ExpandQuery appends ontology synonyms and category members to query.
// Terms already contained in the query are skipped; no term is added twice.
func ExpandQuery(query string, o *ontology.Ontology) string {
	if o == nil {
		return query
	}
	lowered := strings.ToLower(query)
	var added []string
	seen := make(map[string]bool)

	appendTerms := func(terms []string, limit int) {
		n := 0
		for _, t := range terms {
			if n == limit {
				return
			}
			if seen[t] || strings.Contains(lowered, t) {
				continue
			}
			seen[t] = true
			added = append(added, t)
			n++
		}
	}

	for _, tok := range Tokenize(query) {
		if syns, ok := o.Synonyms(tok); ok {
			appendTerms(syns, MaxSynonymsPerTerm)
		}
		if members, ok := o.Members(tok); ok {
			appendTerms(members, MaxMembersPerCategory)
		}
	}

	if len(added) == 0 {
		return query
	}
	return query + " " + strings.Join(added, " ")
}

// ApplyFilters adds the ontology's non-null filter defaults for keys the
// caller did not set. Caller filters always win.
func ApplyFilters(base filter.Set, o *ontology.Ontology) filter.Set {
	if o == nil {
		return base
	}
	out := base
	for _, f := range o.Filters() {
		if f.Value == nil || base.Has(string(f.Attribute)) {
			continue
		}
		out = out.With(string(f.Attribute), *f.Value)
	}
	return out
}

// DomainScore is the summed importance of the attributes present on m,
// divided by the number of weighted attributes.
func DomainScore(m *material.Material, o *ontology.Ontology) float64 {
	weights := o.Weights()
	if len(weights) == 0 {
		return 0
	}
	var sum float64
	for _, w := range weights {
		if _, ok := w.Get(m); ok {
			sum += w.Importance
		}
	}
	return sum / float64(len(weights))
}

// Rank scores every material against o and sorts by the combined score,
// descending. Equal scores keep their input order. The input is not modified.
func Rank(materials []material.Scored, o *ontology.Ontology) []material.Scored {
	out := slices.Clone(materials)
	if o == nil {
		return out
	}
	for i := range out {
		ds := DomainScore(&out[i].Material, o)
		cs := out[i].Score*PriorWeight + ds*DomainWeight
		out[i].DomainScore = &ds
		out[i].CombinedScore = &cs
	}
	slices.SortStableFunc(out, func(a, b material.Scored) int {
		switch ra, rb := a.RankScore(), b.RankScore(); {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		default:
			return 0
		}
	})
	return out
}

// ExtractInsights explains a ranked list: the key attributes of the domain,
// why the first result leads and how the runners-up differ from it.
func ExtractInsights(ranked []material.Scored, o *ontology.Ontology) *result.Insights {
	ins := &result.Insights{KeyAttributes: []string{}}
	if o == nil {
		return ins
	}

	var keys []ontology.Weight
	for _, w := range o.ByImportance() {
		if w.Importance >= KeyAttributeImportance {
			keys = append(keys, w)
			ins.KeyAttributes = append(ins.KeyAttributes, string(w.Attribute))
		}
	}
	if len(ranked) == 0 {
		return ins
	}

	primary := &ranked[0].Material
	ins.Primary = &result.Recommendation{
		MaterialID: primary.ID,
		Name:       primary.Name,
		Reasons:    primaryReasons(primary, keys),
	}

	order := differentiators(o)
	for i := 1; i < len(ranked) && i <= MaxAlternatives; i++ {
		alt := &ranked[i].Material
		ins.Alternatives = append(ins.Alternatives, result.Alternative{
			MaterialID:  alt.ID,
			Name:        alt.Name,
			Distinction: distinction(primary, alt, order),
		})
	}
	return ins
}

func primaryReasons(m *material.Material, keys []ontology.Weight) []string {
	reasons := make([]string, 0, MaxPrimaryReasons)
	for _, w := range keys {
		if len(reasons) == MaxPrimaryReasons {
			break
		}
		if v, ok := w.Get(m); ok {
			reasons = append(reasons, fmt.Sprintf("%s: %s", w.Attribute, v))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Highest combined relevance")
	}
	return reasons
}

// differentiators lists attributes compared for alternatives: weighted
// attributes at or above DifferentiatorImportance, then the fixed fallbacks.
func differentiators(o *ontology.Ontology) []material.Attribute {
	var out []material.Attribute
	for _, w := range o.ByImportance() {
		if w.Importance >= DifferentiatorImportance {
			out = append(out, w.Attribute)
		}
	}
	for _, a := range material.FallbackDifferentiators {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

func distinction(primary, alt *material.Material, order []material.Attribute) string {
	for _, a := range order {
		av, aok := alt.Get(a)
		pv, pok := primary.Get(a)
		if !aok || (pok && strings.EqualFold(av, pv)) {
			continue
		}
		if pok {
			return fmt.Sprintf("Different %s: %s (vs %s)", a, av, pv)
		}
		return fmt.Sprintf("Different %s: %s", a, av)
	}
	return NoDistinction
}
