package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/fallback"
	"zara-assistant-be/pkg/llm"
	"zara-assistant-be/pkg/metrics"
)

// Gateway fronts an ordered list of LLM backends. Every backend call runs
// under its own retry policy; the chain moves to the next backend only after
// retries are exhausted.
type Gateway struct {
	backends []llm.LLMProvider
	retry    fallback.RetryConfig
	timeout  time.Duration
	logger   logger.ILogger
}

func New(backends []llm.LLMProvider, retry fallback.RetryConfig, timeout time.Duration, log logger.ILogger) *Gateway {
	return &Gateway{
		backends: backends,
		retry:    retry,
		timeout:  timeout,
		logger:   log,
	}
}

func (g *Gateway) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (g *Gateway) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return g.chatOn(ctx, g.backends, history, opts)
}

// Stream relays chunks from the first backend that can stream. A backend that
// fails before producing output is retried and then skipped. A backend that
// fails after producing output is not retried: the remaining chain (or the
// same backend if it is the last) is asked for a one-shot answer. When that
// answer extends the relayed text only the missing suffix is relayed;
// otherwise the full answer is returned with llm.ErrStreamReplaced.
func (g *Gateway) Stream(ctx context.Context, history []llm.Message, onChunk llm.ChunkHandler, opts ...llm.Option) (string, error) {
	var errs []error

	for i, backend := range g.backends {
		var (
			relayed    bool
			streamed   strings.Builder
			handlerErr error
		)

		backendCtx, cancel := context.WithCancel(ctx)
		var firstOutput *time.Timer
		if share := budgetShare(ctx, len(g.backends)-i); share > 0 {
			firstOutput = time.AfterFunc(share, cancel)
		}

		relay := func(chunk string) error {
			if firstOutput != nil {
				firstOutput.Stop()
			}
			if err := onChunk(chunk); err != nil {
				handlerErr = err
				return fmt.Errorf("chunk rejected: %w", fallback.ErrAborted)
			}
			relayed = true
			streamed.WriteString(chunk)
			return nil
		}

		text, err := fallback.Retry(backendCtx, g.retry, func() bool { return !relayed }, func() (string, error) {
			callCtx, cancelCall := g.callContext(backendCtx)
			defer cancelCall()
			return backend.ChatStream(callCtx, history, relay, opts...)
		})
		if firstOutput != nil {
			firstOutput.Stop()
		}
		cancel()

		if err == nil {
			g.record("llm_stream", backend.Name(), nil)
			return text, nil
		}
		if handlerErr != nil {
			return text, handlerErr
		}

		g.record("llm_stream", backend.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))

		if !relayed {
			if i+1 < len(g.backends) {
				metrics.ProviderFallbacksTotal.WithLabelValues("next_backend").Inc()
			}
			continue
		}

		g.logger.Warn("GATEWAY", "Stream interrupted, falling back to one-shot", map[string]interface{}{
			"backend":  backend.Name(),
			"received": streamed.Len(),
			"error":    err.Error(),
		})
		metrics.ProviderFallbacksTotal.WithLabelValues("mid_stream_oneshot").Inc()

		rest := g.backends[i+1:]
		if len(rest) == 0 {
			rest = g.backends[i : i+1]
		}
		full, oneShotErr := g.chatOn(ctx, rest, history, opts)
		if oneShotErr != nil {
			errs = append(errs, oneShotErr)
			break
		}

		suffix, continues := strings.CutPrefix(full, streamed.String())
		if !continues {
			g.logger.Info("GATEWAY", "One-shot answer replaces interrupted stream", map[string]interface{}{"backend": backend.Name()})
			return full, llm.ErrStreamReplaced
		}
		if suffix != "" {
			if err := onChunk(suffix); err != nil {
				return full, err
			}
		}
		return full, nil
	}

	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return "", fmt.Errorf("%w: %w", fallback.ErrProviderUnavailable, errors.Join(errs...))
}

func (g *Gateway) chatOn(ctx context.Context, backends []llm.LLMProvider, history []llm.Message, opts []llm.Option) (string, error) {
	strategies := make([]fallback.Strategy[string], 0, len(backends))
	for i, backend := range backends {
		remaining := len(backends) - i
		strategies = append(strategies, fallback.Strategy[string]{
			Name: backend.Name(),
			Run: func(ctx context.Context) (string, error) {
				backendCtx, cancel := withBudgetShare(ctx, remaining)
				defer cancel()
				text, err := fallback.Retry(backendCtx, g.retry, nil, func() (string, error) {
					callCtx, cancelCall := g.callContext(backendCtx)
					defer cancelCall()
					return backend.Chat(callCtx, history, opts...)
				})
				g.record("llm", backend.Name(), err)
				return text, err
			},
		})
	}

	text, used, err := fallback.First(ctx, strategies)
	if err != nil {
		g.logger.Error("GATEWAY", "All LLM backends failed", map[string]interface{}{
			"backends": len(backends),
			"error":    err.Error(),
		})
		return "", err
	}
	if len(backends) > 0 && used != backends[0].Name() {
		metrics.ProviderFallbacksTotal.WithLabelValues("next_backend").Inc()
		g.logger.Info("GATEWAY", "Served by fallback backend", map[string]interface{}{"backend": used})
	}
	return text, nil
}

// budgetShare splits what is left of the caller's deadline evenly between
// this backend and the ones after it, so a hanging backend cannot use up the
// time of its fallbacks. It is zero when there is no deadline or no fallback.
func budgetShare(ctx context.Context, remaining int) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok || remaining <= 1 {
		return 0
	}
	return time.Until(deadline) / time.Duration(remaining)
}

func withBudgetShare(ctx context.Context, remaining int) (context.Context, context.CancelFunc) {
	share := budgetShare(ctx, remaining)
	if share <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, share)
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) record(kind, backend string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ProviderCallsTotal.WithLabelValues(kind, backend, status).Inc()
}
