// Package metering gates remote searches on a user's credit balance.
package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/usage"
	"github.com/kailas-cloud/matsearch/internal/repository/credits"
)

// AnonymousUser is charged when a request carries no user id.
const AnonymousUser = "anonymous"

// Ledger reads balances and records charges.
type Ledger interface {
	Balance(ctx context.Context, userID string) (usage.Credits, error)
	Consume(ctx context.Context, ch credits.Charge) error
}

// Service answers quota questions and books consumption.
type Service struct {
	ledger        Ledger
	operationCost int64
	now           func() time.Time
}

// New creates a metering service. operationCost is the unit price of one
// metered search, reported alongside balances.
func New(ledger Ledger, operationCost int64) *Service {
	return &Service{ledger: ledger, operationCost: operationCost, now: time.Now}
}

// OperationCost returns the configured unit price of a metered search.
func (s *Service) OperationCost() int64 { return s.operationCost }

// Balance returns the user's credits.
func (s *Service) Balance(ctx context.Context, userID string) (usage.Credits, error) {
	c, err := s.ledger.Balance(ctx, normalize(userID))
	if err != nil {
		return usage.Credits{}, fmt.Errorf("balance: %w", err)
	}
	c.OperationCost = s.operationCost
	return c, nil
}

// Check returns a *domain.QuotaError when userID cannot afford units.
func (s *Service) Check(ctx context.Context, userID, operation string, units int64) error {
	c, err := s.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if c.Balance < units {
		return &domain.QuotaError{
			UserID:    c.UserID,
			Operation: operation,
			Required:  units,
			Available: c.Balance,
		}
	}
	return nil
}

// Consume deducts units and writes a ledger entry.
func (s *Service) Consume(
	ctx context.Context, userID, operation string, units int64, description string, meta map[string]string,
) error {
	if units <= 0 {
		return domain.Errorf(domain.KindValidation, "metering.consume", "units must be positive, got %d", units)
	}
	err := s.ledger.Consume(ctx, credits.Charge{
		UserID:      normalize(userID),
		Operation:   operation,
		Units:       units,
		Description: description,
		Context:     meta,
		At:          s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", operation, err)
	}
	return nil
}

func normalize(userID string) string {
	if userID == "" {
		return AnonymousUser
	}
	return userID
}
