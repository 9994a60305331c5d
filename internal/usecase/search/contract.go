package search

import (
	"context"

	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	"github.com/kailas-cloud/matsearch/internal/usecase/understanding"
)

// Remote executes searches on the remote search service. One call is one attempt.
type Remote interface {
	Search(ctx context.Context, req *request.Request) (*result.Envelope, error)
	Ping(ctx context.Context) error
}

// Meter gates and books metered usage.
type Meter interface {
	Check(ctx context.Context, userID, operation string, units int64) error
	Consume(
		ctx context.Context, userID, operation string, units int64, description string, meta map[string]string,
	) error
}

// Understander expands raw queries.
type Understander interface {
	Enhance(
		ctx context.Context, query string, p understanding.Params, cc *domconv.Context,
	) understanding.Enhancement
}

// ImageEncoder vectorizes images.
type ImageEncoder interface {
	EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error)
}

// Materials is the local similarity and full-text store.
type Materials interface {
	SearchSimilar(ctx context.Context, vec []float32, filters filter.Set, k int) ([]material.Scored, error)
	SearchText(
		ctx context.Context, query string, filters filter.Set, offset, limit int,
	) ([]material.Scored, int, error)
}

// Conversations tracks per-session dialogue state.
type Conversations interface {
	GetOrCreate(ctx context.Context, sessionID string) (*domconv.Context, bool)
	Append(c *domconv.Context, msg domconv.Message)
	Save(ctx context.Context, c *domconv.Context) error
}
