package metering

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/usage"
	"github.com/kailas-cloud/matsearch/internal/repository/credits"
)

type mockLedger struct {
	balances map[string]int64
	charges  []credits.Charge
	err      error
}

func (m *mockLedger) Balance(_ context.Context, userID string) (usage.Credits, error) {
	if m.err != nil {
		return usage.Credits{}, m.err
	}
	b := m.balances[userID]
	return usage.Credits{UserID: userID, Granted: b, Balance: b}, nil
}

func (m *mockLedger) Consume(_ context.Context, ch credits.Charge) error {
	if m.err != nil {
		return m.err
	}
	m.charges = append(m.charges, ch)
	m.balances[ch.UserID] -= ch.Units
	return nil
}

func TestCheck_Affordability(t *testing.T) {
	s := New(&mockLedger{balances: map[string]int64{"rich": 10, "poor": 1}}, 2)

	tests := []struct {
		user       string
		affordable bool
	}{
		{"rich", true},
		{"poor", false},
		{"", false},
	}
	for _, tt := range tests {
		err := s.Check(context.Background(), tt.user, "multimodal_search", 2)
		if tt.affordable && err != nil {
			t.Errorf("Check(%q): %v", tt.user, err)
		}
		if !tt.affordable && !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Errorf("Check(%q) = %v, want insufficient credits", tt.user, err)
		}
	}
}

func TestCheck_QuotaError(t *testing.T) {
	s := New(&mockLedger{balances: map[string]int64{"u1": 1}}, 2)

	err := s.Check(context.Background(), "u1", "domain_search", 2)
	var qe *domain.QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *QuotaError", err)
	}
	if qe.Required != 2 || qe.Available != 1 || qe.Operation != "domain_search" {
		t.Errorf("quota error = %+v", qe)
	}
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Error("expected ErrInsufficientCredits in chain")
	}
}

func TestConsume(t *testing.T) {
	l := &mockLedger{balances: map[string]int64{AnonymousUser: 5}}
	s := New(l, 2)

	err := s.Consume(context.Background(), "", "conversational_search", 2, "remote search",
		map[string]string{"strategy": "mcp-conversational"})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(l.charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(l.charges))
	}
	ch := l.charges[0]
	if ch.UserID != AnonymousUser || ch.Units != 2 || ch.At.IsZero() {
		t.Errorf("charge = %+v", ch)
	}

	if err := s.Consume(context.Background(), "u", "op", 0, "", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestBalance_ReportsOperationCost(t *testing.T) {
	s := New(&mockLedger{balances: map[string]int64{"u1": 7}}, 2)

	c, err := s.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if c.OperationCost != 2 || c.SearchesRemaining() != 3 {
		t.Errorf("credits = %+v", c)
	}

	failing := New(&mockLedger{err: errors.New("redis down")}, 2)
	if _, err := failing.Balance(context.Background(), "u1"); err == nil {
		t.Error("expected error")
	}
}
