package models

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedLLM spaces out calls to a hosted model so that a burst of
// reasoning steps stays inside the provider's quota.
type RateLimitedLLM struct {
	Agent   Agent
	limiter *rate.Limiter
}

// NewRateLimitedLLM allows one call every interval with the given burst.
// A non-positive interval disables limiting.
func NewRateLimitedLLM(agent Agent, interval time.Duration, burst int) *RateLimitedLLM {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimitedLLM{Agent: agent, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimitedLLM) Generate(ctx context.Context, prompt string) (any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Agent.Generate(ctx, prompt)
}

func (r *RateLimitedLLM) Verify(ctx context.Context) error {
	if v, ok := r.Agent.(Verifier); ok {
		return v.Verify(ctx)
	}
	return nil
}

func (r *RateLimitedLLM) Close() error {
	if cl, ok := r.Agent.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

var (
	_ Agent    = (*RateLimitedLLM)(nil)
	_ Verifier = (*RateLimitedLLM)(nil)
	_ Agent    = (*CachedLLM)(nil)
	_ Verifier = (*CachedLLM)(nil)
)
