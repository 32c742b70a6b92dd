package completion

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// WithRateLimit wraps c so that calls wait for a token from limiter first.
// A nil limiter returns c unchanged.
func WithRateLimit(c Completer, limiter *rate.Limiter) Completer {
	if limiter == nil {
		return c
	}
	return &rateLimited{next: c, limiter: limiter}
}

func (r *rateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Complete(ctx, req)
}

func (r *rateLimited) Model() string { return r.next.Model() }

// PerMinute converts a requests-per-minute budget into a limiter; n <= 0
// disables limiting.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(n)/60.0), 1)
}
