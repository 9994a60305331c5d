// Package concept models the semantic concepts used to expand raw queries.
package concept

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// GeneralDomain is the partition searched when a requested domain has no matches.
const GeneralDomain = "general"

// Concept is a vocabulary term with its embedding and related terms.
type Concept struct {
	id            string
	term          string
	embedding     []float32
	relatedTerms  []string
	domainContext string
	popularity    int64
}

// IDFor derives a stable concept id from its domain and term, so re-seeding
// the same vocabulary upserts rather than duplicates.
func IDFor(domainContext, term string) string {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(strings.ToLower(domainContext)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(term)))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], binary.LittleEndian.Uint64(h.Sum(nil)))
	return hex.EncodeToString(buf[:])
}

// New validates and creates a Concept. An empty domain defaults to GeneralDomain.
func New(term, domainContext string, embedding []float32, relatedTerms []string, popularity int64) (Concept, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Concept{}, fmt.Errorf("concept term is required")
	}
	if len(embedding) == 0 {
		return Concept{}, fmt.Errorf("concept %q: embedding is required", term)
	}
	if domainContext == "" {
		domainContext = GeneralDomain
	}
	if popularity < 0 {
		popularity = 0
	}
	return Concept{
		id:            IDFor(domainContext, term),
		term:          term,
		embedding:     embedding,
		relatedTerms:  relatedTerms,
		domainContext: domainContext,
		popularity:    popularity,
	}, nil
}

// Reconstruct restores a Concept from storage without recomputing its id.
func Reconstruct(
	id, term, domainContext string, embedding []float32, relatedTerms []string, popularity int64,
) Concept {
	return Concept{
		id:            id,
		term:          term,
		embedding:     embedding,
		relatedTerms:  relatedTerms,
		domainContext: domainContext,
		popularity:    popularity,
	}
}

func (c Concept) ID() string             { return c.id }
func (c Concept) Term() string           { return c.term }
func (c Concept) Embedding() []float32   { return c.embedding }
func (c Concept) RelatedTerms() []string { return c.relatedTerms }
func (c Concept) DomainContext() string  { return c.domainContext }
func (c Concept) Popularity() int64      { return c.popularity }

// WithEmbedding returns a copy carrying v.
func (c Concept) WithEmbedding(v []float32) Concept {
	c.embedding = v
	return c
}

// Match is a concept hit with its cosine similarity to the query.
type Match struct {
	Concept    Concept
	Similarity float64
}
