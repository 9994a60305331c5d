package embedding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/usage"
)

// BudgetAction defines behavior when the encoder token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists token counters per period bucket.
type BudgetStore interface {
	Add(ctx context.Context, period usage.Period, bucket string, tokens int64) error
	Used(ctx context.Context, period usage.Period, bucket string) (int64, error)
}

type counter struct {
	limit int64
	used  int64
	start time.Time
}

func (c *counter) remaining() int64 {
	if c.limit == 0 {
		return -1
	}
	return max(c.limit-c.used, 0)
}

func (c *counter) exceeded() bool { return c.limit > 0 && c.used >= c.limit }

// BudgetTracker keeps encoder token usage in memory, shared by every
// request, and writes it behind to an optional store.
// Check never leaves the process.
type BudgetTracker struct {
	mu       sync.Mutex
	counters map[usage.Period]*counter
	action   BudgetAction
	provider string
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		action:   action,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	now := b.now()
	b.counters = map[usage.Period]*counter{
		usage.PeriodDay:   {limit: dailyLimit, start: periodStart(usage.PeriodDay, now)},
		usage.PeriodMonth: {limit: monthlyLimit, start: periodStart(usage.PeriodMonth, now)},
	}
	return b
}

// WithStore attaches a persistence store and loads the current buckets.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for period, c := range b.counters {
		used, err := store.Used(ctx, period, bucket(period, now))
		if err != nil {
			b.logger.Warn("load encoder budget failed", zap.String("period", string(period)), zap.Error(err))
			continue
		}
		c.used = used
	}
	b.logger.Info("encoder budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.counters[usage.PeriodDay].used),
		zap.Int64("monthly_used", b.counters[usage.PeriodMonth].used),
	)
	return b
}

// Check verifies the budget allows another encoder call.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	day, month := b.counters[usage.PeriodDay], b.counters[usage.PeriodMonth]
	if !day.exceeded() && !month.exceeded() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("encoder token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", day.used),
		zap.Int64("daily_limit", day.limit),
		zap.Int64("monthly_used", month.used),
		zap.Int64("monthly_limit", month.limit),
	)
	return nil
}

// Record adds consumed tokens in memory, then to the store if attached.
func (b *BudgetTracker) Record(ctx context.Context, tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	b.rollover()
	for _, c := range b.counters {
		c.used += tokens
	}
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	for _, period := range []usage.Period{usage.PeriodDay, usage.PeriodMonth} {
		if err := store.Add(wctx, period, bucket(period, now), tokens); err != nil {
			b.logger.Warn("persist encoder budget failed", zap.String("period", string(period)), zap.Error(err))
		}
	}
}

// Budget reports usage for one period.
func (b *BudgetTracker) Budget(period usage.Period) usage.TokenBudget {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	c, ok := b.counters[period]
	if !ok {
		return usage.TokenBudget{Period: period, Remaining: -1}
	}
	return usage.TokenBudget{
		Period:      period,
		Limit:       c.limit,
		Used:        c.used,
		Remaining:   c.remaining(),
		IsExhausted: c.exceeded(),
		PeriodStart: c.start.UnixMilli(),
		ResetsAt:    periodEnd(period, c.start).UnixMilli(),
	}
}

// Remaining returns tokens left in the period, -1 when unlimited.
func (b *BudgetTracker) Remaining(period usage.Period) int64 {
	return b.Budget(period).Remaining
}

// rollover zeroes counters whose period has ended. Caller holds mu.
func (b *BudgetTracker) rollover() {
	now := b.now()
	for period, c := range b.counters {
		if start := periodStart(period, now); start.After(c.start) {
			c.used = 0
			c.start = start
		}
	}
}

func periodStart(p usage.Period, t time.Time) time.Time {
	if p == usage.PeriodMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func periodEnd(p usage.Period, start time.Time) time.Time {
	if p == usage.PeriodMonth {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

// bucket names the store counter of the period containing t.
func bucket(p usage.Period, t time.Time) string {
	if p == usage.PeriodMonth {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}
