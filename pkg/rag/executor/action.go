package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"zara-assistant-be/pkg/agent"
	"zara-assistant-be/pkg/ai/router"
	"zara-assistant-be/pkg/embedding"
	"zara-assistant-be/pkg/llm"
	"zara-assistant-be/pkg/metrics"
	"zara-assistant-be/pkg/rag"
	"zara-assistant-be/pkg/rag/message"
	"zara-assistant-be/pkg/rag/prompt"
)

const (
	streamPassageThreshold = 3
	streamQueryThreshold   = 100
)

func (p *Pipeline) classify(ctx context.Context, t *turn) router.Decision {
	defer p.observe(message.StageClassify, time.Now())
	t.status(message.StageClassify, message.StatusProcessing, "Analyzing your question")

	ctx, span := p.tracer.Start(ctx, "pipeline.classify")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.QuickTimeout)
	defer cancel()
	d := p.deps.Router.Route(callCtx, t.query.Text)

	span.SetAttributes(
		attribute.String("intent", string(d.Intent)),
		attribute.Float64("confidence", d.Confidence),
	)
	t.status(message.StageClassify, message.StatusComplete,
		fmt.Sprintf("Intent: %s (%.0f%% confidence)", d.Intent, d.Confidence*100))
	return d
}

func (p *Pipeline) databaseContext(ctx context.Context, t *turn) string {
	if p.deps.Context == nil {
		return ""
	}

	defer p.observe(message.StageContext, time.Now())
	t.status(message.StageContext, message.StatusProcessing, "Loading knowledge base summary")

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.QuickTimeout)
	defer cancel()

	summary, err := p.deps.Context.ContextSummary(callCtx)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			p.logStage(t, message.StageContext, err)
		}
		t.status(message.StageContext, message.StatusError, "Knowledge base summary unavailable, using defaults")
		return rag.FallbackContextSummary
	}
	t.status(message.StageContext, message.StatusComplete, "Knowledge base summary ready")
	return summary
}

// enhance returns the text later stages should work from. On failure that is
// the original query, reported with confidence 0.
func (p *Pipeline) enhance(ctx context.Context, t *turn, dbContext string) string {
	defer p.observe(message.StageEnhance, time.Now())
	t.status(message.StageEnhance, message.StatusProcessing, "Enhancing your question")

	ctx, span := p.tracer.Start(ctx, "pipeline.enhance")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.QuickTimeout)
	defer cancel()

	enh, err := p.deps.Enhancer.Restructure(callCtx, t.query.Text, dbContext)
	if err != nil {
		p.logStage(t, message.StageEnhance, err)
		span.RecordError(err)
		enh = agent.Enhancement{Original: t.query.Text, Enhanced: t.query.Text, Reasoning: "Enhancement unavailable"}
	}
	if strings.TrimSpace(enh.Enhanced) == "" {
		enh.Enhanced = t.query.Text
	}

	if !t.send(message.Enhancement(enh)) {
		return enh.Enhanced
	}
	if err != nil {
		t.status(message.StageEnhance, message.StatusError, "Enhancement unavailable, using your original question")
	} else {
		t.status(message.StageEnhance, message.StatusComplete,
			fmt.Sprintf("Question enhanced (%.0f%% confidence)", enh.Confidence*100))
	}
	return enh.Enhanced
}

func (p *Pipeline) retrieve(ctx context.Context, t *turn, text string, k int) []rag.Passage {
	defer p.observe(message.StageRetrieve, time.Now())
	t.status(message.StageRetrieve, message.StatusProcessing, "Searching documents")

	ctx, span := p.tracer.Start(ctx, "pipeline.retrieve")
	defer span.End()

	passages, err := p.search(ctx, t.query, text, k)
	if err != nil {
		p.logStage(t, message.StageRetrieve, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		t.status(message.StageRetrieve, message.StatusError, "Document search unavailable")
		return nil
	}

	metrics.RetrievedPassages.Observe(float64(len(passages)))
	span.SetAttributes(attribute.Int("passages", len(passages)))
	t.passages = len(passages)

	if !t.send(message.Sources(passages)) {
		return passages
	}
	t.status(message.StageRetrieve, message.StatusComplete, fmt.Sprintf("Found %d relevant passages", len(passages)))
	return passages
}

func (p *Pipeline) search(ctx context.Context, q rag.Query, text string, k int) ([]rag.Passage, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.QuickTimeout)
	defer cancel()

	vec, err := p.deps.Embedder.Embed(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", rag.ErrRetrievalFailure, err)
	}
	if embedding.IsZero(vec) {
		return nil, fmt.Errorf("%w: no embedding backend available", rag.ErrRetrievalFailure)
	}

	passages, err := p.deps.Retriever.Search(callCtx, q.TenantID, vec, k, q.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rag.ErrRetrievalFailure, err)
	}
	return passages, nil
}

func (p *Pipeline) plan(ctx context.Context, t *turn, text string, passages []rag.Passage, preferVisual bool) rag.Content {
	defer p.observe(message.StagePlan, time.Now())
	t.status(message.StagePlan, message.StatusProcessing, "Choosing the best response format")

	ctx, span := p.tracer.Start(ctx, "pipeline.plan")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()

	plan := p.deps.Planner.Plan(callCtx, text, passages, preferVisual)
	if plan == nil {
		plan = rag.Text{}
	}

	span.SetAttributes(attribute.String("plan", string(plan.Kind())))
	t.status(message.StagePlan, message.StatusComplete, "Response format: "+string(plan.Kind()))
	return plan
}

func (p *Pipeline) runTool(ctx context.Context, t *turn, call *rag.ToolCall) {
	defer p.observe(message.StageTool, time.Now())
	t.status(message.StageTool, message.StatusProcessing, "Running "+call.Name)

	ctx, span := p.tracer.Start(ctx, "pipeline.tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool", call.Name))

	result := p.deps.Tools.Execute(ctx, call)
	if result == nil {
		result = rag.Text{Body: "Tool not recognized."}
	}

	t.outcome = outcomeTool
	if !t.send(message.Content(result)) {
		return
	}
	t.status(message.StageTool, message.StatusComplete, fmt.Sprintf("%s returned %s", call.Name, result.Kind()))
}

// generate answers from the grounded prompt, streaming when the answer is
// likely to be long. It reports whether a complete answer was delivered.
func (p *Pipeline) generate(ctx context.Context, t *turn, text string, passages []rag.Passage, dbContext string) (string, bool) {
	defer p.observe(message.StageGenerate, time.Now())
	t.status(message.StageGenerate, message.StatusProcessing, "Generating answer")

	ctx, span := p.tracer.Start(ctx, "pipeline.generate")
	defer span.End()

	grounded := prompt.NewGroundedBuilder(text, passages).WithDatabaseContext(dbContext).Build()
	opts := []llm.Option{llm.WithTemperature(p.cfg.Temperature)}
	if t.decision.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(t.decision.MaxTokens))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()

	var (
		answer   string
		err      error
		replaced bool
	)
	if shouldStream(t.query.Text, passages) {
		span.SetAttributes(attribute.Bool("stream", true))
		answer, err = p.deps.Generator.Stream(callCtx, []llm.Message{{Role: "user", Content: grounded}}, func(chunk string) error {
			if chunk == "" {
				return nil
			}
			if !t.streamOpen && !t.send(message.StreamStart()) {
				return t.err
			}
			if !t.send(message.StreamChunk(chunk)) {
				return t.err
			}
			return nil
		}, opts...)
		if errors.Is(err, llm.ErrStreamReplaced) {
			// The fallback answer does not continue the partial stream; it is
			// sent whole after the stream is closed.
			replaced, err = true, nil
		}
		if t.streamOpen {
			t.send(message.StreamEnd())
		}
	} else {
		answer, err = p.deps.Generator.Generate(callCtx, grounded, opts...)
	}

	if t.lost() {
		return "", false
	}

	if err != nil {
		p.logStage(t, message.StageGenerate, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		t.status(message.StageGenerate, message.StatusError, "Answer generation failed")
		if t.terminal {
			t.outcome = outcomePartial
			return "", false
		}
		t.outcome = outcomeApology
		t.send(message.Answer(apology))
		return "", false
	}

	// Single-shot answers, streams that produced no chunks, and replaced
	// streams end here.
	if (replaced || !t.terminal) && !t.send(message.Answer(answer)) {
		return "", false
	}
	t.outcome = outcomeText
	t.status(message.StageGenerate, message.StatusComplete, "Answer ready")
	return answer, true
}

func (p *Pipeline) evaluate(ctx context.Context, t *turn, answer string) {
	if strings.TrimSpace(answer) == "" {
		return
	}

	defer p.observe(message.StageEvaluate, time.Now())
	t.status(message.StageEvaluate, message.StatusProcessing, "Reviewing the answer")

	ctx, span := p.tracer.Start(ctx, "pipeline.evaluate")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.QuickTimeout)
	defer cancel()

	ev, err := p.deps.Evaluator.Evaluate(callCtx, answer, t.query.Text)
	if err != nil {
		p.logStage(t, message.StageEvaluate, err)
		span.RecordError(err)
		ev = agent.Evaluation{Original: answer, Improved: answer, Reasoning: "Evaluation unavailable"}
	}

	if !t.send(message.Evaluation(ev)) {
		return
	}
	if ev.Changed() && !t.send(message.AnswerEnhanced(ev.Improved)) {
		return
	}

	if err != nil {
		t.status(message.StageEvaluate, message.StatusError, "Evaluation unavailable")
		return
	}
	t.status(message.StageEvaluate, message.StatusComplete,
		fmt.Sprintf("Answer reviewed (%.0f%% confidence)", ev.Confidence*100))
}

func shouldStream(query string, passages []rag.Passage) bool {
	return len(passages) > streamPassageThreshold || utf8.RuneCountInString(query) > streamQueryThreshold
}
