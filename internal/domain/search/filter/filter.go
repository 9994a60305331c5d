package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/matsearch/internal/domain/material"
)

// MaxConditions is the maximum number of filter conditions per request.
const MaxConditions = 32

// Condition is an exact tag match on one field.
type Condition struct {
	key   string
	value string
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Value returns the exact match value.
func (c Condition) Value() string { return c.value }

// Set is a conjunction of tag matches with at most one condition per key,
// kept sorted by key.
type Set struct {
	conds []Condition
}

// Match creates a single-condition set on an arbitrary indexed field.
func Match(key, value string) Set {
	return Set{}.With(key, value)
}

// FromMap validates caller-supplied filters. Keys must be registered material
// attributes; empty values are dropped.
func FromMap(m map[string]string) (Set, error) {
	if len(m) > MaxConditions {
		return Set{}, fmt.Errorf("too many filters (max %d)", MaxConditions)
	}
	var s Set
	for k, v := range m {
		attr, _, err := material.Lookup(k)
		if err != nil {
			return Set{}, err
		}
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		s = s.With(string(attr), v)
	}
	return s, nil
}

// With returns a copy of s with key set to value, replacing any existing condition on key.
func (s Set) With(key, value string) Set {
	conds := make([]Condition, 0, len(s.conds)+1)
	for _, c := range s.conds {
		if c.key != key {
			conds = append(conds, c)
		}
	}
	conds = append(conds, Condition{key: key, value: value})
	slices.SortFunc(conds, func(a, b Condition) int { return strings.Compare(a.key, b.key) })
	return Set{conds: conds}
}

// Has reports whether s constrains key.
func (s Set) Has(key string) bool {
	return slices.ContainsFunc(s.conds, func(c Condition) bool { return c.key == key })
}

// Conditions returns the conditions in key order.
func (s Set) Conditions() []Condition { return s.conds }

// IsEmpty reports whether the set has no conditions.
func (s Set) IsEmpty() bool { return len(s.conds) == 0 }

// Map returns the set as a plain map.
func (s Set) Map() map[string]string {
	m := make(map[string]string, len(s.conds))
	for _, c := range s.conds {
		m[c.key] = c.value
	}
	return m
}
