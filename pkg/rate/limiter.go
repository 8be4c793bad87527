package rate

import (
	"context"
	"fmt"

	xrate "golang.org/x/time/rate"
)

// Limiter gates outbound mailbox API calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket releases a fixed number of tokens per second with a burst equal
// to that rate.
type TokenBucket struct {
	limiter *xrate.Limiter
}

// NewTokenBucket returns a limiter that releases rps tokens per second.
func NewTokenBucket(rps int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	return &TokenBucket{limiter: xrate.NewLimiter(xrate.Limit(rps), rps)}
}

// Wait blocks until a token is available. It fails early when the context is
// canceled or its deadline would pass first.
func (t *TokenBucket) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait canceled: %w", err)
	}
	return nil
}

// Unlimited never blocks. Used in tests and when rate limiting is disabled.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = Unlimited{}
)
