// Package embedder converts text into dense vector embeddings by talking to
// the configured provider's embeddings REST API over plain HTTP — no extra
// SDK dependencies. All clients share an optional rate limiter so batch
// re-indexing cannot exceed the provider's QPS allowance.
package embedder

import (
	"context"

	"golang.org/x/time/rate"
)

// Embedder converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice. Implementations must be
// safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// waitLimiter blocks until the limiter grants a slot. A nil limiter means
// unthrottled.
func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

// NewLimiter builds the shared per-provider limiter: qps sustained requests
// per second with a burst of the same size. qps <= 0 disables throttling.
func NewLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return nil
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}
