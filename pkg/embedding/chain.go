package embedding

import (
	"context"
	"time"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/fallback"
	"zara-assistant-be/pkg/metrics"
)

// Chain embeds text with ordered provider fallback. When every provider fails
// it returns a zero vector of the configured dimension instead of an error;
// callers must check IsZero and treat the result as "no signal".
type Chain struct {
	providers []EmbeddingProvider
	dimension int
	retry     fallback.RetryConfig
	timeout   time.Duration
	cache     Cache
	logger    logger.ILogger
}

type ChainOption func(*Chain)

func WithCache(c Cache) ChainOption {
	return func(ch *Chain) { ch.cache = c }
}

func WithRetry(cfg fallback.RetryConfig) ChainOption {
	return func(ch *Chain) { ch.retry = cfg }
}

func WithTimeout(d time.Duration) ChainOption {
	return func(ch *Chain) { ch.timeout = d }
}

func NewChain(providers []EmbeddingProvider, dimension int, log logger.ILogger, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		dimension: dimension,
		logger:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) Dimension() int {
	return c.dimension
}

func (c *Chain) Embed(ctx context.Context, text string) ([]float32, error) {
	strategies := make([]fallback.Strategy[[]float32], 0, len(c.providers))
	for _, p := range c.providers {
		strategies = append(strategies, fallback.Strategy[[]float32]{
			Name: p.Name(),
			Run: func(ctx context.Context) ([]float32, error) {
				return c.embedWith(ctx, p, text)
			},
		})
	}

	vec, _, err := fallback.First(ctx, strategies)
	if err != nil {
		c.logger.Warn("GATEWAY", "All embedding providers failed, returning zero vector", map[string]interface{}{
			"providers": len(c.providers),
			"error":     err.Error(),
		})
		metrics.ProviderFallbacksTotal.WithLabelValues("zero_vector").Inc()
		return make([]float32, c.dimension), nil
	}
	return vec, nil
}

func (c *Chain) embedWith(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	key := CacheKey(p.Name(), text)
	if c.cache != nil {
		if v, ok := c.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	vec, err := fallback.Retry(ctx, c.retry, nil, func() ([]float32, error) {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		defer cancel()
		return p.Embed(callCtx, text)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ProviderCallsTotal.WithLabelValues("embedding", p.Name(), status).Inc()

	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, vec)
	}
	return vec, nil
}
