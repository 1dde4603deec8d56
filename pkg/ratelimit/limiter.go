// Package ratelimit paces outgoing requests to the remote order API.
//
// XMR.to answers HTTP 403 once a client exceeds its request budget, so the
// transport throttles itself client-side instead of burning the budget and
// parsing rate-limit errors after the fact. The implementation wraps Uber's
// token bucket limiter behind a small interface so tests can substitute a
// limiter that never blocks.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate describes how many operations are permitted per interval.
// For example, Rate{Limit: 30, Interval: time.Minute} allows 30 requests
// per minute.
type Rate struct {
	Limit    int
	Interval time.Duration
}

// RateLimiter controls the pace of operations. Wait blocks until the next
// operation is permitted or the context is cancelled.
type RateLimiter interface {
	Wait(ctx context.Context) error

	// SetLimit replaces the current rate configuration. It returns an
	// error for non-positive limits or intervals.
	SetLimit(rate Rate) error
}

type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a RateLimiter using Uber's token bucket
// implementation.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	return &uberLimiter{
		limiter: ratelimit.New(rate.Limit, ratelimit.Per(rate.Interval)),
		rate:    rate,
	}
}

// Wait implements RateLimiter.
func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

// SetLimit implements RateLimiter.
func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	l.limiter = ratelimit.New(rate.Limit, ratelimit.Per(rate.Interval))
	l.rate = rate
	return nil
}
