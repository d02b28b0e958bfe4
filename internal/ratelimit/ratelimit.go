// Package ratelimit implements an in-memory token bucket limiter used to
// slow down credential guessing on the auth endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Config defines the token bucket parameters.
type Config struct {
	// Capacity is the burst size of the bucket.
	Capacity int
	// RefillRate is the number of tokens added per refill interval.
	RefillRate int
	// RefillInterval is how often tokens are added.
	RefillInterval time.Duration
}

// Result describes the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long to wait before the next attempt can succeed.
	// Zero when the request was allowed.
	RetryAfter time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// Limiter is a thread-safe in-memory token bucket limiter keyed by an
// arbitrary string (typically the client IP). Stale buckets are swept
// inline during normal operation, so no background goroutine is needed.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	now     func() time.Time

	sweepInterval time.Duration
	lastSweep     time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSweepInterval sets how often stale buckets are removed. Buckets idle
// for longer than one sweep interval are dropped.
func WithSweepInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		if interval > 0 {
			l.sweepInterval = interval
		}
	}
}

// New creates a limiter. Panics when any config field is not positive,
// since a zero-valued limiter would silently reject or admit everything.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Capacity <= 0 || cfg.RefillRate <= 0 || cfg.RefillInterval <= 0 {
		panic("ratelimit: capacity, refill rate and refill interval must be positive")
	}

	l := &Limiter{
		cfg:           cfg,
		buckets:       make(map[string]*bucket),
		now:           time.Now,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow consumes one token for the key and reports whether the request
// should proceed.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.cfg.Capacity, lastRefill: now}
		l.buckets[key] = b
	}
	b.lastAccess = now
	l.refill(b, now)

	if b.tokens <= 0 {
		return Result{RetryAfter: b.lastRefill.Add(l.cfg.RefillInterval).Sub(now)}
	}
	b.tokens--
	return Result{Allowed: true, Remaining: b.tokens}
}

// refill adds tokens for whole elapsed intervals, capping at capacity.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < l.cfg.RefillInterval {
		return
	}

	// One extra interval fully refills an empty bucket; more adds nothing.
	maxIntervals := int64(l.cfg.Capacity/l.cfg.RefillRate) + 1
	intervals := min(int64(elapsed/l.cfg.RefillInterval), maxIntervals)

	b.tokens += int(intervals) * l.cfg.RefillRate
	if b.tokens >= l.cfg.Capacity {
		b.tokens = l.cfg.Capacity
		b.lastRefill = now
	} else {
		b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * l.cfg.RefillInterval)
	}
}

// sweep drops buckets idle for longer than one sweep interval. Runs at
// most once per interval, inside the caller's lock.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepInterval {
		return
	}
	l.lastSweep = now

	for key, b := range l.buckets {
		if now.Sub(b.lastAccess) > l.sweepInterval {
			delete(l.buckets, key)
		}
	}
}

// Size reports the number of tracked keys.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
