// Package resilience provides fault-tolerance patterns for outbound calls:
// circuit breaker and bulkhead. Calls are never retried automatically; a
// failed operation is reported and left for the user to re-issue.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds resilience parameters.
type Config struct {
	MaxConcurrency int
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// ErrOpen is returned by Guard.Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// NewCircuitBreaker creates a circuit breaker with sensible defaults.
func NewCircuitBreaker(name string, timeout time.Duration) *gobreaker.CircuitBreaker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     timeout,          // open -> half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}

// Guard runs a call inside a bulkhead slot and through a circuit breaker.
type Guard struct {
	cb *gobreaker.CircuitBreaker
	bh *Bulkhead
}

// NewGuard builds a Guard named after the dependency it protects.
func NewGuard(name string, cfg Config) *Guard {
	return &Guard{
		cb: NewCircuitBreaker(name, cfg.BreakerTimeout),
		bh: NewBulkhead(cfg.MaxConcurrency),
	}
}

// Do executes fn exactly once. Breaker rejections are reported as ErrOpen.
func (g *Guard) Do(ctx context.Context, fn func() error) error {
	if err := g.bh.Acquire(ctx); err != nil {
		return err
	}
	defer g.bh.Release()

	_, err := g.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// State exposes the breaker state for health reporting.
func (g *Guard) State() string {
	return g.cb.State().String()
}
