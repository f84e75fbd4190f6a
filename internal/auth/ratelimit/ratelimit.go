// Package ratelimit implements per-tenant token-bucket admission control.
// Each tenant gets its own bucket with capacity equal to the refill rate
// (a pure rate limit, no separate burst allowance). Buckets are created
// lazily on first sight of a tenant and live for the process lifetime.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultPermitsPerSecond is the refill rate applied when none is configured.
const DefaultPermitsPerSecond = 100

// bucket tracks token-bucket state for a single tenant. Each bucket has its
// own mutex so contention on one tenant never blocks another.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Limiter is a registry of per-tenant token buckets.
type Limiter struct {
	buckets sync.Map // tenantID -> *bucket
	rate    float64  // permits per second, also the bucket capacity
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Limiter admitting permitsPerSecond requests per tenant.
// A non-positive rate falls back to DefaultPermitsPerSecond.
func New(permitsPerSecond float64) *Limiter {
	if permitsPerSecond <= 0 {
		permitsPerSecond = DefaultPermitsPerSecond
	}
	return &Limiter{
		rate:   permitsPerSecond,
		now:    time.Now,
		logger: slog.Default().With("component", "rate-limiter"),
	}
}

// TryAcquire deducts one permit from the tenant's bucket if available.
// An unseen tenant gets a full bucket. Safe for concurrent callers on the
// same tenant: a given permit is spent by exactly one of them.
func (l *Limiter) TryAcquire(tenantID string) bool {
	v, ok := l.buckets.Load(tenantID)
	if !ok {
		// Full bucket minus nothing; the deduction happens under the lock
		// below so racing first-callers cannot double-spend.
		v, _ = l.buckets.LoadOrStore(tenantID, &bucket{
			tokens:     l.rate,
			lastRefill: l.now(),
		})
	}
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.rate {
			b.tokens = l.rate
		}
		b.lastRefill = now
	}

	if b.tokens < 1 {
		l.logger.Warn("rate limit exceeded", "tenant", tenantID)
		return false
	}
	b.tokens--
	return true
}

// Rate returns the configured permits per second.
func (l *Limiter) Rate() float64 {
	return l.rate
}
