package matsearch

import (
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/search/kind"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	domusage "github.com/kailas-cloud/matsearch/internal/domain/usage"
	healthuc "github.com/kailas-cloud/matsearch/internal/usecase/health"
)

// Kind selects the search capability.
type Kind = kind.Kind

// Search kinds.
const (
	KindMultimodal     = kind.Multimodal
	KindConversational = kind.Conversational
	KindDomain         = kind.Domain
)

// Period selects the encoder budget window of a usage report.
type Period = domusage.Period

// Usage periods.
const (
	PeriodDay   = domusage.PeriodDay
	PeriodMonth = domusage.PeriodMonth
)

type (
	// SearchParams are the raw search inputs. Zero weights and limits take defaults.
	SearchParams = request.Params
	// Result is a search response envelope.
	Result = result.Envelope
	// Conversation is the stored context of a session.
	Conversation = domconv.Context
	// UsageReport combines user credits and the encoder token budget.
	UsageReport = domusage.Report
	// HealthReport aggregates component checks.
	HealthReport = healthuc.Report
)
