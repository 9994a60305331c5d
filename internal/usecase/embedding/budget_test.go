package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/usage"
)

func TestBudgetTracker_RejectWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionReject, zap.NewNop())

	bt.Record(context.Background(), 100)

	err := bt.Check(context.Background())
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected domain.ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestBudgetTracker_WarnWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionWarn, zap.NewNop())

	bt.Record(context.Background(), 200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for warn action, got %v", err)
	}
}

func TestBudgetTracker_MonthlyReject(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 500, BudgetActionReject, zap.NewNop())

	bt.Record(context.Background(), 500)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected domain.ErrEmbeddingQuotaExceeded for monthly limit, got %v", err)
	}
}

func TestBudgetTracker_UnlimitedWhenZero(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionReject, zap.NewNop())

	bt.Record(context.Background(), 999999999)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for unlimited budget, got %v", err)
	}
	if got := bt.Remaining(usage.PeriodDay); got != -1 {
		t.Errorf("expected -1 for unlimited daily, got %d", got)
	}
}

func TestBudgetTracker_Budget(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.now = func() time.Time { return time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC) }
	bt.rollover()

	bt.Record(context.Background(), 300)

	day := bt.Budget(usage.PeriodDay)
	if day.Remaining != 700 || day.Used != 300 || day.IsExhausted {
		t.Errorf("day = %+v", day)
	}
	wantStart := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	if day.PeriodStart != wantStart.UnixMilli() || day.ResetsAt != wantStart.AddDate(0, 0, 1).UnixMilli() {
		t.Errorf("day window = %d..%d", day.PeriodStart, day.ResetsAt)
	}

	month := bt.Budget(usage.PeriodMonth)
	if month.Remaining != 9700 {
		t.Errorf("expected monthly remaining 9700, got %d", month.Remaining)
	}
	if month.ResetsAt != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("month resets at %d", month.ResetsAt)
	}
}

func TestBudgetTracker_RolloverResetsDay(t *testing.T) {
	now := time.Date(2026, 2, 10, 23, 59, 0, 0, time.UTC)
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.now = func() time.Time { return now }
	bt.rollover()

	bt.Record(context.Background(), 400)
	now = now.Add(2 * time.Minute)

	if got := bt.Budget(usage.PeriodDay).Used; got != 0 {
		t.Errorf("daily used after midnight = %d, want 0", got)
	}
	if got := bt.Budget(usage.PeriodMonth).Used; got != 400 {
		t.Errorf("monthly used = %d, want 400", got)
	}
}

// --- Mock BudgetStore ---

type mockBudgetStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{data: make(map[string]int64)}
}

func (m *mockBudgetStore) Add(_ context.Context, period usage.Period, b string, tokens int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[string(period)+":"+b] += tokens
	return nil
}

func (m *mockBudgetStore) Used(_ context.Context, period usage.Period, b string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[string(period)+":"+b], nil
}

// --- Persistence tests ---

func TestBudgetTracker_WithStore_LoadsValues(t *testing.T) {
	store := newMockBudgetStore()
	now := time.Now().UTC()
	store.data["day:"+bucket(usage.PeriodDay, now)] = 300
	store.data["month:"+bucket(usage.PeriodMonth, now)] = 5000

	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionReject, zap.NewNop())
	bt.WithStore(context.Background(), store)

	if got := bt.Budget(usage.PeriodDay).Used; got != 300 {
		t.Errorf("expected daily used 300, got %d", got)
	}
	if got := bt.Budget(usage.PeriodMonth).Used; got != 5000 {
		t.Errorf("expected monthly used 5000, got %d", got)
	}
}

func TestBudgetTracker_Record_PersistsBuckets(t *testing.T) {
	store := newMockBudgetStore()
	bt := NewBudgetTracker("prov", 10000, 100000, BudgetActionWarn, zap.NewNop())
	fixed := time.Date(2026, 4, 5, 8, 0, 0, 0, time.UTC)
	bt.now = func() time.Time { return fixed }
	bt.rollover()
	bt.WithStore(context.Background(), store)

	bt.Record(context.Background(), 100)
	bt.Record(context.Background(), 200)

	store.mu.Lock()
	defer store.mu.Unlock()
	if got := store.data["day:2026-04-05"]; got != 300 {
		t.Errorf("stored daily = %d, want 300", got)
	}
	if got := store.data["month:2026-04"]; got != 300 {
		t.Errorf("stored monthly = %d, want 300", got)
	}
}

func TestBudgetTracker_WithStore_LoadError(t *testing.T) {
	store := newMockBudgetStore()
	store.getErr = errors.New("connection refused")

	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionReject, zap.NewNop())
	bt.WithStore(context.Background(), store)

	if got := bt.Budget(usage.PeriodDay).Used; got != 0 {
		t.Errorf("expected daily used 0 on load error, got %d", got)
	}
}

func TestBudgetTracker_Record_StoreWriteError(t *testing.T) {
	store := newMockBudgetStore()
	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.WithStore(context.Background(), store)

	store.mu.Lock()
	store.setErr = errors.New("write timeout")
	store.mu.Unlock()

	bt.Record(context.Background(), 50)

	if got := bt.Budget(usage.PeriodDay).Used; got != 50 {
		t.Errorf("expected daily used 50 even with store error, got %d", got)
	}
}

func TestBucket(t *testing.T) {
	at := time.Date(2026, 11, 3, 12, 0, 0, 0, time.UTC)
	if got := bucket(usage.PeriodDay, at); got != "2026-11-03" {
		t.Errorf("day bucket = %q", got)
	}
	if got := bucket(usage.PeriodMonth, at); got != "2026-11" {
		t.Errorf("month bucket = %q", got)
	}
}
