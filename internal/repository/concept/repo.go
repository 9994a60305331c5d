// Package concept stores semantic concepts in a Redis HNSW index and
// answers nearest-neighbour lookups for query understanding.
package concept

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
	domconcept "github.com/kailas-cloud/matsearch/internal/domain/concept"
	"github.com/kailas-cloud/matsearch/internal/domain/search/filter"
)

// store is the consumer interface for concept operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// IndexOptions sizes the HNSW vector field.
type IndexOptions struct {
	Dimensions  int
	M           int
	EFConstruct int
}

// Repo implements concept persistence and similarity search.
type Repo struct {
	store  store
	prefix string
}

// New creates a concept repository. An empty prefix uses domain.KeyPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// IndexName returns the FT index holding concepts.
func (r *Repo) IndexName() string { return r.prefix + "idx:concepts" }

func (r *Repo) keyPrefix() string { return r.prefix + "concept:" }

func (r *Repo) key(id string) string { return r.keyPrefix() + id }

// EnsureIndex creates the concept index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, opts IndexOptions) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check concept index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.IndexName()).
		Prefix(r.keyPrefix()).
		Tag(fieldTerm, fieldDomain).
		TagList(fieldRelated, relatedSeparator).
		Numeric(fieldPopularity).
		VectorHNSW(db.VectorField, opts.Dimensions, db.DistanceCosine, opts.M, opts.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build concept index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create concept index: %w", err)
	}
	return nil
}

// Upsert stores c under its content-derived id. The embedding is
// unit-normalized before it is written.
func (r *Repo) Upsert(ctx context.Context, c domconcept.Concept) (string, error) {
	vec := domain.Normalize(c.Embedding())
	if domain.Norm(vec) == 0 {
		return "", domain.Errorf(domain.KindValidation, "concept.upsert", "concept %q has a zero embedding", c.Term())
	}

	if err := r.store.HSet(ctx, r.key(c.ID()), buildHashFields(c.WithEmbedding(vec))); err != nil {
		return "", fmt.Errorf("hset concept %s: %w", c.ID(), err)
	}
	return c.ID(), nil
}

// Search returns concepts of domainContext whose similarity to vec is at
// least threshold, best first. An empty domainContext searches all partitions.
func (r *Repo) Search(
	ctx context.Context, vec []float32, domainContext string, threshold float64, limit int,
) ([]domconcept.Match, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := &db.KNNQuery{
		IndexName:    r.IndexName(),
		Vector:       vec,
		K:            limit,
		ReturnFields: returnFields,
	}
	if domainContext != "" {
		q.Filters = filter.Match(fieldDomain, domainContext)
	}

	res, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("concept knn search: %w", err)
	}

	matches := make([]domconcept.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Score < threshold {
			continue
		}
		id := strings.TrimPrefix(e.Key, r.keyPrefix())
		matches = append(matches, domconcept.Match{
			Concept:    parseHashFields(id, e.Fields),
			Similarity: e.Score,
		})
	}
	return matches, nil
}

// IncrementPopularity bumps the popularity counter of a concept.
func (r *Repo) IncrementPopularity(ctx context.Context, id string) error {
	if _, err := r.store.HIncrBy(ctx, r.key(id), fieldPopularity, 1); err != nil {
		return fmt.Errorf("incr popularity %s: %w", id, err)
	}
	return nil
}
