package concept

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/matsearch/internal/db"
	domconcept "github.com/kailas-cloud/matsearch/internal/domain/concept"
)

const (
	fieldTerm        = "term"
	fieldDomain      = "domain"
	fieldRelated     = "related_terms"
	fieldPopularity  = "popularity"
	relatedSeparator = "|"
)

var returnFields = []string{fieldTerm, fieldDomain, fieldRelated, fieldPopularity}

func buildHashFields(c domconcept.Concept) map[string]string {
	return map[string]string{
		fieldTerm:       c.Term(),
		fieldDomain:     c.DomainContext(),
		fieldRelated:    strings.Join(c.RelatedTerms(), relatedSeparator),
		fieldPopularity: strconv.FormatInt(c.Popularity(), 10),
		db.VectorField:  db.EncodeVector(c.Embedding()),
	}
}

// parseHashFields rebuilds a concept from returned fields. Search results
// omit the vector, so the embedding is only set when present.
func parseHashFields(id string, m map[string]string) domconcept.Concept {
	var related []string
	if s := m[fieldRelated]; s != "" {
		related = strings.Split(s, relatedSeparator)
	}
	popularity, _ := strconv.ParseInt(m[fieldPopularity], 10, 64)

	var vec []float32
	if raw, ok := m[db.VectorField]; ok {
		vec, _ = db.DecodeVector(raw)
	}

	return domconcept.Reconstruct(id, m[fieldTerm], m[fieldDomain], vec, related, popularity)
}
