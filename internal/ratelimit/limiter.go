// Package ratelimit enforces minimum spacing between consecutive calls to a
// provider. Each provider carries its own interval; a provider with no
// configured interval is never throttled.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter tracks the last issuance time per provider and blocks callers until
// the configured spacing has elapsed.
type Limiter struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	lastIssue map[string]time.Time
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// New constructs a limiter from a provider-name to minimum-interval map.
func New(intervals map[string]time.Duration) *Limiter {
	cp := make(map[string]time.Duration, len(intervals))
	for name, interval := range intervals {
		if interval > 0 {
			cp[name] = interval
		}
	}
	return &Limiter{
		intervals: cp,
		lastIssue: make(map[string]time.Time),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Wait blocks until it is safe to issue another call to the provider, or the
// context ends. The slot is claimed on return so sequential callers observe
// the spacing even when the subsequent call fails fast.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	interval, limited := l.intervals[provider]
	if !limited {
		l.mu.Unlock()
		return nil
	}
	now := l.now()
	ready := l.lastIssue[provider].Add(interval)
	var delay time.Duration
	if ready.After(now) {
		delay = ready.Sub(now)
	}
	l.lastIssue[provider] = now.Add(delay)
	l.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	return l.sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
