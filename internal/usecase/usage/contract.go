package usage

import (
	"context"

	domusage "github.com/kailas-cloud/matsearch/internal/domain/usage"
)

// BudgetReader provides read-only access to encoder token budget state.
type BudgetReader interface {
	Budget(period domusage.Period) domusage.TokenBudget
}

// CreditReader reads a user's metered balance.
type CreditReader interface {
	Balance(ctx context.Context, userID string) (domusage.Credits, error)
}
