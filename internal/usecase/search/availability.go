package search

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	stateUnknown int32 = iota
	stateUp
	stateDown
)

// DefaultPingTimeout bounds a single availability ping.
const DefaultPingTimeout = 5 * time.Second

// Availability latches the outcome of the first completed remote ping for
// the life of the process. Concurrent first pings may race; the last one wins.
type Availability struct {
	ping    func(ctx context.Context) error
	timeout time.Duration
	state   atomic.Int32
}

// NewAvailability creates a latch over ping. A nil ping is never available.
// A non-positive timeout uses DefaultPingTimeout.
func NewAvailability(ping func(ctx context.Context) error, timeout time.Duration) *Availability {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	return &Availability{ping: ping, timeout: timeout}
}

// Available reports whether the remote path may be used, pinging once.
// The ping runs detached from ctx under its own timeout. A caller whose ctx
// ends first gets false without latching; the ping still records its result.
func (a *Availability) Available(ctx context.Context) bool {
	if a == nil || a.ping == nil {
		return false
	}
	switch a.state.Load() {
	case stateUp:
		return true
	case stateDown:
		return false
	}

	done := make(chan bool, 1)
	go func() {
		pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		up := a.ping(pingCtx) == nil
		if up {
			a.state.Store(stateUp)
		} else {
			a.state.Store(stateDown)
		}
		done <- up
	}()

	select {
	case up := <-done:
		return up
	case <-ctx.Done():
		return false
	}
}

// Invalidate forces the next Available call to ping again.
func (a *Availability) Invalidate() {
	if a != nil {
		a.state.Store(stateUnknown)
	}
}
