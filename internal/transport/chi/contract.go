package chi

import (
	"context"

	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	domusage "github.com/kailas-cloud/matsearch/internal/domain/usage"
	healthuc "github.com/kailas-cloud/matsearch/internal/usecase/health"
)

// Searcher executes validated search requests.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (*result.Envelope, error)
	InvalidateRemote()
}

// Sessions reads and clears conversation state.
type Sessions interface {
	Load(ctx context.Context, sessionID string) (*domconv.Context, error)
	Clear(ctx context.Context, sessionID string) (bool, error)
}

// UsageReporter builds credit and encoder budget reports.
type UsageReporter interface {
	GetReport(ctx context.Context, userID string, period domusage.Period) (domusage.Report, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
