package queue

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// defaultBurstSize is the burst used when a limit is set without one.
const defaultBurstSize = 5

// RateLimiter paces tasks within a single lane.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// NewRateLimiter returns a token bucket refilling perSecond tokens a second.
// A perSecond of zero or less disables limiting and returns nil.
func NewRateLimiter(perSecond float64, burst int) RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = defaultBurstSize
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

type tokenBucket struct {
	limiter *rate.Limiter
}

// Wait blocks until a token is available or ctx is canceled.
func (tb *tokenBucket) Wait(ctx context.Context) error {
	if err := tb.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("context canceled while waiting for rate limit: %w", err)
	}
	return nil
}
