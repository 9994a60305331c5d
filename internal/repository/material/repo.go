// Package material stores the material catalogue and serves the vector and
// BM25 lookups of the local search path.
package material

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
	dommaterial "github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/search/filter"
)

// store is the consumer interface for material operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// IndexOptions sizes the HNSW vector field.
type IndexOptions struct {
	Dimensions  int
	M           int
	EFConstruct int
}

// Repo implements material persistence and search.
type Repo struct {
	store  store
	prefix string
}

// New creates a material repository. An empty prefix uses domain.KeyPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// IndexName returns the FT index holding materials.
func (r *Repo) IndexName() string { return r.prefix + "idx:materials" }

func (r *Repo) keyPrefix() string { return r.prefix + "material:" }

func (r *Repo) key(id string) string { return r.keyPrefix() + id }

// EnsureIndex creates the material index when it does not exist yet.
// Every registered attribute is a TAG so it can be used as a filter.
func (r *Repo) EnsureIndex(ctx context.Context, opts IndexOptions) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check material index: %w", err)
	}
	if exists {
		return nil
	}

	b := db.NewIndex(r.IndexName()).
		Prefix(r.keyPrefix()).
		Text(fieldText)
	for _, a := range dommaterial.Registered() {
		b = b.Tag(string(a))
	}
	def, err := b.
		VectorHNSW(db.VectorField, opts.Dimensions, db.DistanceCosine, opts.M, opts.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build material index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create material index: %w", err)
	}
	return nil
}

// Upsert stores m with an optional embedding and returns its id.
// A material without an id gets a fresh one.
func (r *Repo) Upsert(ctx context.Context, m dommaterial.Material, vec []float32) (string, error) {
	if strings.TrimSpace(m.Name) == "" {
		return "", domain.Errorf(domain.KindValidation, "material.upsert", "material name is required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	fields, err := buildHashFields(&m, domain.Normalize(vec))
	if err != nil {
		return "", fmt.Errorf("encode material %s: %w", m.ID, err)
	}
	if err := r.store.HSet(ctx, r.key(m.ID), fields); err != nil {
		return "", fmt.Errorf("hset material %s: %w", m.ID, err)
	}
	return m.ID, nil
}

// Get loads a material by id.
func (r *Repo) Get(ctx context.Context, id string) (dommaterial.Material, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return dommaterial.Material{}, domain.E(domain.KindNotFound, "material.get", nil)
		}
		return dommaterial.Material{}, fmt.Errorf("hgetall material %s: %w", id, err)
	}
	return parseHashFields(id, m), nil
}

// SearchSimilar returns the k materials nearest to vec that satisfy filters.
func (r *Repo) SearchSimilar(
	ctx context.Context, vec []float32, filters filter.Set, k int,
) ([]dommaterial.Scored, error) {
	if k <= 0 {
		return nil, nil
	}
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(),
		Filters:      filters,
		Vector:       vec,
		K:            k,
		ReturnFields: returnFields(),
	})
	if err != nil {
		return nil, fmt.Errorf("material knn search: %w", err)
	}
	return r.toScored(res), nil
}

// SearchText runs a BM25 query over the material text and returns one
// page of hits together with the total hit count.
func (r *Repo) SearchText(
	ctx context.Context, query string, filters filter.Set, offset, limit int,
) ([]dommaterial.Scored, int, error) {
	res, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.IndexName(),
		Field:        fieldText,
		Query:        query,
		Filters:      filters,
		Offset:       offset,
		Limit:        limit,
		ReturnFields: returnFields(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("material text search: %w", err)
	}
	return r.toScored(res), res.Total, nil
}

func (r *Repo) toScored(res *db.SearchResult) []dommaterial.Scored {
	out := make([]dommaterial.Scored, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := strings.TrimPrefix(e.Key, r.keyPrefix())
		out = append(out, dommaterial.Scored{
			Material: parseHashFields(id, e.Fields),
			Score:    e.Score,
		})
	}
	return out
}
