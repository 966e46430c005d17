package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedClient bounds the request rate to an inner client.
//
// Every Generate call waits for a token before being forwarded, so a burst
// of concurrent instructions does not trip provider rate limits. A waiting
// caller returns early when its context is done.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a token bucket of rps requests per
// second and the given burst. rps <= 0 returns inner unwrapped.
func NewRateLimitedClient(inner LLMClient, rps float64, burst int) LLMClient {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate implements the LLMClient interface
func (r *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit wait: %w", err)
	}
	return r.inner.Generate(ctx, prompt, params)
}

var _ LLMClient = (*RateLimitedClient)(nil)
