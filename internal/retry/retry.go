// Package retry provides a reusable exponential backoff policy.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy describes how an operation is retried. The zero value runs the
// operation exactly once.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is doubled on each retry: delay = BaseDelay * 2^retry + jitter.
	BaseDelay time.Duration
	// JitterSpan bounds the random addition to each delay.
	JitterSpan time.Duration
	// AttemptTimeout bounds a single attempt. Zero means no per-attempt bound.
	AttemptTimeout time.Duration
	// Retryable decides whether a failed attempt is retried. Nil retries nothing.
	Retryable func(error) bool
	// Jitter returns a duration in [0, span). Nil uses math/rand.
	Jitter func(span time.Duration) time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(retry int, delay time.Duration, err error)
}

// Delay returns the wait before retry number n (0-based).
func (p Policy) Delay(n int) time.Duration {
	d := p.BaseDelay << n
	if p.JitterSpan > 0 {
		d += p.jitter(p.JitterSpan)
	}
	return d
}

func (p Policy) jitter(span time.Duration) time.Duration {
	if p.Jitter != nil {
		return p.Jitter(span)
	}
	return time.Duration(rand.Int64N(int64(span)))
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p Policy) retryable(err error) bool {
	return p.Retryable != nil && p.Retryable(err)
}

// Do runs op under p and returns its value, the number of attempts made and
// the last error. It stops early when ctx is done or op fails with a
// non-retryable error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return zero, attempts, err
		}

		attempts++
		v, err := attempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return v, attempts, nil
		}

		retry := attempts - 1
		if retry >= p.MaxRetries || !p.retryable(err) || ctx.Err() != nil {
			return zero, attempts, err
		}

		delay := p.Delay(retry)
		if p.OnRetry != nil {
			p.OnRetry(retry, delay, err)
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			return zero, attempts, err
		}
	}
}

func attempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(ctx)
}
