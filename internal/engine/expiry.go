package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// ExpirySweeper tracks resting orders sorted by expires_at and periodically
// transitions the ones whose expiry has passed. This is an operational
// convenience: matching and cancellation correctness never depend on the
// sweep, since both resolve expiry lazily through the matcher.
type ExpirySweeper struct {
	interval time.Duration
	matcher  *Matcher

	mu      sync.Mutex
	tracked []*domain.Order // sorted by ExpiresAt ASC
}

// NewExpirySweeper creates a sweeper ticking at the given interval.
func NewExpirySweeper(interval time.Duration, matcher *Matcher) *ExpirySweeper {
	return &ExpirySweeper{
		interval: interval,
		matcher:  matcher,
	}
}

// Add inserts an order into the sorted tracking slice. Call when an order
// rests on the book. Orders that leave the book early (fill, cancel) need
// no removal: the sweep's TouchExpiry is a no-op on terminal orders.
func (e *ExpirySweeper) Add(o *domain.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := sort.Search(len(e.tracked), func(i int) bool {
		return e.tracked[i].ExpiresAt.After(o.ExpiresAt)
	})
	e.tracked = append(e.tracked, nil)
	copy(e.tracked[idx+1:], e.tracked[idx:])
	e.tracked[idx] = o
}

// Start launches a background goroutine that sweeps at the configured
// interval. It stops when ctx is cancelled.
func (e *ExpirySweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.sweep(t)
			}
		}
	}()
}

// sweep pops due orders from the front of the sorted slice and touches
// their expiry.
func (e *ExpirySweeper) sweep(now time.Time) {
	e.mu.Lock()
	var due []*domain.Order
	cutoff := 0
	for cutoff < len(e.tracked) && !e.tracked[cutoff].ExpiresAt.After(now) {
		due = append(due, e.tracked[cutoff])
		cutoff++
	}
	if cutoff > 0 {
		e.tracked = e.tracked[cutoff:]
	}
	e.mu.Unlock()

	for _, o := range due {
		_ = e.matcher.TouchExpiry(o.ID, now)
	}
}

// TrackedCount returns the number of orders currently tracked. Useful for
// testing.
func (e *ExpirySweeper) TrackedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tracked)
}
