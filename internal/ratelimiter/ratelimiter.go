// Package ratelimiter wraps golang.org/x/time/rate with the token bucket
// semantics the server uses to throttle anonymous share access: a sustained
// rate plus a burst allowance, with an unlimited mode for the zero value.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a thread-safe token bucket. Tokens refill at the
// configured sustained rate; each request consumes one. Burst capacity
// absorbs short spikes above the sustained rate.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained and up to
// burst immediate requests. requestsPerSecond = 0 disables limiting.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		// rate.Inf has edge cases around burst handling; a huge finite
		// limit behaves identically in practice.
		requestsPerSecond = 1_000_000_000
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether one more request fits the limit, consuming a token
// when it does. This is the fast path; it never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current bucket fill, mainly for monitoring.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
