package usage

import (
	"context"
	"fmt"

	domusage "github.com/kailas-cloud/matsearch/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	credits CreditReader
	br      BudgetReader
}

// New creates a Service. br can be nil (unlimited encoder budget).
func New(credits CreditReader, br BudgetReader) *Service {
	return &Service{credits: credits, br: br}
}

// GetReport combines the user's credits with the encoder budget of period.
// An invalid period falls back to the daily budget.
func (s *Service) GetReport(ctx context.Context, userID string, period domusage.Period) (domusage.Report, error) {
	if !period.IsValid() {
		period = domusage.PeriodDay
	}

	c, err := s.credits.Balance(ctx, userID)
	if err != nil {
		return domusage.Report{}, fmt.Errorf("credits: %w", err)
	}

	b := domusage.TokenBudget{Period: period, Remaining: -1}
	if s.br != nil {
		b = s.br.Budget(period)
	}
	return domusage.Report{Credits: c, Encoder: b}, nil
}
