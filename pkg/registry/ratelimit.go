package registry

import (
	"context"
	"time"

	"github.com/matzehuels/cratesls/pkg/observability"
)

// DefaultRateInterval is the minimum spacing between registry API calls.
// The crates.io crawler policy allows at most one request per second.
const DefaultRateInterval = time.Second

// Limiter is a process-wide permit gate that enforces a minimum interval
// between grants. Permits are strictly serialized: concurrent Acquire calls
// queue in arrival order and are granted one at a time, each spaced at
// least the interval from the previous grant.
//
// The limiter is the single piece of process-wide mutable state in the
// resolution core. Share one instance across every client that talks to the
// rate-limited source.
type Limiter struct {
	interval time.Duration

	// turn holds a single token. Goroutines blocked receiving from a
	// channel are woken in FIFO order, which gives the strict grant
	// ordering the external contract requires. last is only ever touched
	// by the token holder.
	turn chan struct{}
	last time.Time
}

// NewLimiter creates a Limiter with the given minimum interval between
// permits. A non-positive interval selects [DefaultRateInterval].
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultRateInterval
	}
	l := &Limiter{
		interval: interval,
		turn:     make(chan struct{}, 1),
	}
	l.turn <- struct{}{}
	return l
}

// Acquire blocks the calling goroutine until at least the configured
// interval has elapsed since the previous permit was granted anywhere in
// the process, then grants the permit. It returns ctx.Err() if the context
// is cancelled first; a cancelled waiter gives up its place without
// delaying or reordering the waiters behind it.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.turn:
	}

	if wait := l.interval - time.Since(l.last); !l.last.IsZero() && wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.turn <- struct{}{}
			return ctx.Err()
		case <-timer.C:
		}
	}

	l.last = time.Now()
	l.turn <- struct{}{}

	observability.Rate().OnPermit(ctx, time.Since(start))
	return nil
}
