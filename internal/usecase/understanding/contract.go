package understanding

import (
	"context"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/concept"
	"github.com/kailas-cloud/matsearch/internal/repository/queryhistory"
)

// Encoder vectorizes query text.
type Encoder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ConceptStore finds semantic concepts near a query vector.
type ConceptStore interface {
	Search(
		ctx context.Context, vector []float32, domainContext string, threshold float64, limit int,
	) ([]concept.Match, error)
	IncrementPopularity(ctx context.Context, id string) error
}

// HistoryRecorder persists enhanced queries.
type HistoryRecorder interface {
	Record(ctx context.Context, e queryhistory.Entry) (string, error)
}

// Submitter runs fire-and-forget tasks. *ants.Pool satisfies it.
type Submitter interface {
	Submit(task func()) error
}
