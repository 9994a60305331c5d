package conversation

import (
	"context"

	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
)

// Repository is the durable source of truth for sessions.
type Repository interface {
	GetByID(ctx context.Context, sessionID string) (*domconv.Context, error)
	Upsert(ctx context.Context, c *domconv.Context) error
	Delete(ctx context.Context, sessionID string) (bool, error)
}
