package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ErrProviderUnavailable is returned when every strategy in a chain failed.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrAborted marks errors that must stop the chain immediately, such as a
// consumer refusing further stream chunks.
var ErrAborted = errors.New("aborted")

// Strategy is one entry of an ordered fallback chain.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// First runs strategies in order and returns the first success along with the
// name of the strategy that produced it. When all fail the error wraps
// ErrProviderUnavailable and every individual cause.
func First[T any](ctx context.Context, strategies []Strategy[T]) (T, string, error) {
	var zero T
	var errs []error

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		v, err := s.Run(ctx)
		if err == nil {
			return v, s.Name, nil
		}
		if errors.Is(err, ErrAborted) {
			return zero, s.Name, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no strategies configured"))
	}
	return zero, "", fmt.Errorf("%w: %w", ErrProviderUnavailable, errors.Join(errs...))
}

// RetryConfig bounds per-strategy retries.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (c RetryConfig) normalize() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay > 0 && c.MaxDelay <= c.BaseDelay {
		c.MaxDelay = c.BaseDelay * 8
	}
	return c
}

// NewRetryPolicy retries any error with exponential backoff, except
// cancellation and aborts. shouldRetry may further restrict retries; nil
// allows all.
func NewRetryPolicy[T any](cfg RetryConfig, shouldRetry func() bool) retrypolicy.RetryPolicy[T] {
	cfg = cfg.normalize()
	builder := retrypolicy.NewBuilder[T]().
		WithMaxRetries(cfg.MaxRetries).
		HandleIf(func(_ T, err error) bool {
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrAborted) {
				return false
			}
			return shouldRetry == nil || shouldRetry()
		})

	if cfg.BaseDelay > 0 {
		builder = builder.WithBackoff(cfg.BaseDelay, cfg.MaxDelay)
	}
	return builder.Build()
}

// Retry executes fn under a retry policy built from cfg.
func Retry[T any](ctx context.Context, cfg RetryConfig, shouldRetry func() bool, fn func() (T, error)) (T, error) {
	policy := NewRetryPolicy[T](cfg, shouldRetry)
	return failsafe.With[T](policy).WithContext(ctx).Get(fn)
}
