// Package ratelimit provides the process-wide request throttle shared by all
// enrichment workers.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between granted requests.
//
// A nil *Limiter, or one built with a non-positive rate, never blocks.
type Limiter struct {
	interval time.Duration
	lim      *rate.Limiter
}

// PerMinute returns a limiter granting at most rpm requests per minute across
// all callers. rpm <= 0 disables gating.
func PerMinute(rpm float64) *Limiter {
	if rpm <= 0 {
		return &Limiter{}
	}
	interval := time.Duration(float64(time.Minute) / rpm)
	// Burst 1: each grant must be at least one interval after the previous one.
	return &Limiter{
		interval: interval,
		lim:      rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait blocks until the next request may be issued or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}
	return l.lim.Wait(ctx)
}

// Interval is the minimum spacing between grants, zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Enabled reports whether Wait can block.
func (l *Limiter) Enabled() bool {
	return l != nil && l.lim != nil
}
