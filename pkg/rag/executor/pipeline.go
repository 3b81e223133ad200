package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/agent"
	"zara-assistant-be/pkg/ai/router"
	"zara-assistant-be/pkg/events"
	"zara-assistant-be/pkg/llm"
	"zara-assistant-be/pkg/metrics"
	"zara-assistant-be/pkg/rag"
	"zara-assistant-be/pkg/rag/message"
)

type Router interface {
	Route(ctx context.Context, query string) router.Decision
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Planner interface {
	Plan(ctx context.Context, query string, passages []rag.Passage, preferVisual bool) rag.Content
}

type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error)
	Stream(ctx context.Context, history []llm.Message, onChunk llm.ChunkHandler, opts ...llm.Option) (string, error)
}

type ToolRunner interface {
	Execute(ctx context.Context, call *rag.ToolCall) rag.Content
}

// Dependencies are the collaborators of a Pipeline. Context and Events are
// optional.
type Dependencies struct {
	Router    Router
	Embedder  Embedder
	Retriever rag.Retriever
	Planner   Planner
	Generator Generator
	Tools     ToolRunner
	Enhancer  agent.Enhancer
	Evaluator agent.Evaluator
	Context   rag.ContextProvider
	Events    events.Publisher
	Logger    logger.ILogger
}

// Pipeline runs one conversation turn at a time:
// classify → (fast path | enhance? → retrieve? → plan → tool | generate → evaluate?).
// It holds no per-session state and is shared by all sessions.
type Pipeline struct {
	deps   Dependencies
	cfg    Config
	tracer trace.Tracer
}

func NewPipeline(deps Dependencies, cfg Config) *Pipeline {
	return &Pipeline{
		deps:   deps,
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("zara/pipeline"),
	}
}

// Run drives one turn, emitting its events in order through emit. Stage
// failures are reported to the client and absorbed; the only error returned
// wraps rag.ErrConnectionLost.
func (p *Pipeline) Run(ctx context.Context, q rag.Query, emit Emitter) (err error) {
	t := newTurn(uuid.NewString(), q, emit)

	ctx, span := p.tracer.Start(ctx, "pipeline.turn", trace.WithAttributes(
		attribute.String("turn.id", t.id),
		attribute.String("turn.mode", string(q.Mode)),
		attribute.String("conversation.id", q.ConversationID),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			p.deps.Logger.Error("PIPELINE", "Turn panicked", map[string]interface{}{
				"turn_id": t.id,
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			})
			t.outcome = outcomeError
			t.fail()
		}
		p.finish(ctx, t)
		err = t.err
	}()

	p.run(ctx, t)
	return nil
}

func (p *Pipeline) run(ctx context.Context, t *turn) {
	if !t.send(message.User(t.query.Text)) {
		return
	}

	t.decision = p.classify(ctx, t)
	if t.lost() {
		return
	}

	if t.decision.IsFastPath() {
		t.outcome = outcomeFastPath
		t.send(message.Answer(router.FastResponse(t.decision.Intent)))
		return
	}

	profile := ProfileFor(t.query.Mode, p.cfg)
	improve := profile.Enhance && t.decision.NeedsImprovement
	dbContext := p.databaseContext(ctx, t)
	if t.lost() {
		return
	}

	text := t.query.Text
	if improve {
		text = p.enhance(ctx, t, dbContext)
		if t.lost() {
			return
		}
	}

	var passages []rag.Passage
	if t.decision.NeedsRetrieval {
		passages = p.retrieve(ctx, t, text, profile.TopK)
		if t.lost() {
			return
		}
	}

	plan := p.plan(ctx, t, text, passages, profile.PreferVisual)
	if t.lost() {
		return
	}

	switch v := plan.(type) {
	case *rag.ToolCall:
		p.runTool(ctx, t, v)
	case rag.Text:
		answer, ok := p.generate(ctx, t, text, passages, dbContext)
		if ok && improve && profile.Evaluate {
			p.evaluate(ctx, t, answer)
		}
	default:
		t.outcome = string(v.Kind())
		t.send(message.Content(v))
	}
}

func (p *Pipeline) finish(ctx context.Context, t *turn) {
	switch {
	case t.lost():
		t.outcome = outcomeDisconnected
	case t.outcome == "":
		t.outcome = outcomeError
	}

	elapsed := time.Since(t.started)
	profile := ProfileFor(t.query.Mode, p.cfg)
	metrics.TurnsTotal.WithLabelValues(string(profile.Mode), string(t.decision.Intent), t.outcome).Inc()

	p.deps.Logger.Info("PIPELINE", "Turn completed", map[string]interface{}{
		"turn_id":     t.id,
		"intent":      string(t.decision.Intent),
		"outcome":     t.outcome,
		"passages":    t.passages,
		"duration_ms": elapsed.Milliseconds(),
	})

	if p.deps.Events == nil {
		return
	}
	err := p.deps.Events.Publish(context.WithoutCancel(ctx), events.TurnCompleted{
		TurnID:         t.id,
		ConversationID: t.query.ConversationID,
		TenantID:       t.query.TenantID,
		Mode:           string(profile.Mode),
		Intent:         string(t.decision.Intent),
		Outcome:        t.outcome,
		DurationMs:     elapsed.Milliseconds(),
		PassageCount:   t.passages,
		OccurredAt:     time.Now(),
	})
	if err != nil {
		p.deps.Logger.Warn("PIPELINE", "Failed to publish turn event", map[string]interface{}{"turn_id": t.id, "error": err.Error()})
	}
}

func (p *Pipeline) observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) logStage(t *turn, stage string, err error) {
	p.deps.Logger.Warn("PIPELINE", "Stage degraded", map[string]interface{}{
		"turn_id": t.id,
		"stage":   stage,
		"error":   err.Error(),
	})
}
