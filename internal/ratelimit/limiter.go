package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultLimit    = 5
	DefaultInterval = time.Minute
)

// Decision is the outcome of a single Decide call.
type Decision struct {
	Allowed bool
	// Suppressed is the number of calls denied since the last allowed one.
	// It is only non-zero on an allowed decision, so the caller can report
	// how much it dropped while throttled.
	Suppressed int
}

// Limiter is a fixed-window throttle shared by the whole process: at most
// limit calls are allowed per interval, the rest are denied until the
// window rolls over. It is not keyed by source; it bounds total volume.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	interval    time.Duration
	now         func() time.Time
	windowStart time.Time
	count       int
	suppressed  int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing limit calls per interval. A limit of zero
// or less denies every call. A non-positive interval uses DefaultInterval.
func New(limit int, interval time.Duration, opts ...Option) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	l := &Limiter{
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether the caller may proceed now.
func (l *Limiter) Allow() bool {
	return l.Decide().Allowed
}

// Decide is Allow plus the count of calls suppressed before this one.
func (l *Limiter) Decide() Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.interval {
		l.windowStart = now
		l.count = 0
	}

	if l.count >= l.limit {
		l.suppressed++
		return Decision{}
	}

	l.count++
	d := Decision{Allowed: true, Suppressed: l.suppressed}
	l.suppressed = 0
	return d
}

// SetLimits replaces the limit and interval, with the same rules as New.
// The current window restarts so the new limit applies from the next call.
func (l *Limiter) SetLimits(limit int, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	l.interval = interval
	l.windowStart = time.Time{}
	l.count = 0
}

// Limit returns the configured number of calls per window.
func (l *Limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Interval returns the window length.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}
