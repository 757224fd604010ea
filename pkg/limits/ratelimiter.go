// Package limits provides the shared resource gates of the composition
// engine: the AI-call token bucket, per-deck exclusive locks, and the
// three-dimension slide concurrency gate.
package limits

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig parameterizes the token bucket: Capacity tokens
// regenerate over Window.
type RateLimiterConfig struct {
	Capacity int           `yaml:"capacity" validate:"min=1"`
	Window   time.Duration `yaml:"window" validate:"min=1ms"`
}

// DefaultRateLimiterConfig allows 10 AI calls per 10 seconds.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{Capacity: 10, Window: 10 * time.Second}
}

// RateLimiter is a token bucket for AI calls: at most Capacity acquisitions
// in any Window. Acquire blocks cooperatively and honors context
// cancellation; the wait never holds internal locks (rate.Limiter reserves
// under its own mutex and sleeps outside it).
type RateLimiter struct {
	limiter  *rate.Limiter
	capacity int
	window   time.Duration

	acquired atomic.Int64
	waited   atomic.Int64 // cumulative wait, nanoseconds
}

// NewRateLimiter builds a limiter refilling at Capacity/Window tokens per
// second with burst Capacity.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	refill := rate.Limit(float64(cfg.Capacity) / cfg.Window.Seconds())
	return &RateLimiter{
		limiter:  rate.NewLimiter(refill, cfg.Capacity),
		capacity: cfg.Capacity,
		window:   cfg.Window,
	}
}

// Acquire consumes one token, blocking until one regenerates or ctx is
// cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter acquire: %w", err)
	}
	r.acquired.Add(1)
	r.waited.Add(int64(time.Since(start)))
	return nil
}

// TryAcquire consumes one token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	if r.limiter.Allow() {
		r.acquired.Add(1)
		return true
	}
	return false
}

// RateLimiterStats is a monitoring snapshot.
type RateLimiterStats struct {
	Capacity      int           `json:"capacity"`
	Window        time.Duration `json:"window"`
	TokensAvail   float64       `json:"tokens_available"`
	TotalAcquired int64         `json:"total_acquired"`
	TotalWaited   time.Duration `json:"total_waited"`
}

// Stats returns a point-in-time snapshot.
func (r *RateLimiter) Stats() RateLimiterStats {
	return RateLimiterStats{
		Capacity:      r.capacity,
		Window:        r.window,
		TokensAvail:   r.limiter.Tokens(),
		TotalAcquired: r.acquired.Load(),
		TotalWaited:   time.Duration(r.waited.Load()),
	}
}
