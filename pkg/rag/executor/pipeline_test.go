package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/agent"
	"zara-assistant-be/pkg/ai/router"
	"zara-assistant-be/pkg/events"
	"zara-assistant-be/pkg/llm"
	"zara-assistant-be/pkg/rag"
	"zara-assistant-be/pkg/rag/message"
)

type fixedRouter struct{ d router.Decision }

func (f fixedRouter) Route(context.Context, string) router.Decision { return f.d }

type countingEmbedder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeRetriever struct {
	passages []rag.Passage
	err      error
	calls    int
	lastK    int
}

func (r *fakeRetriever) Search(_ context.Context, _ string, _ []float32, k int, _ string) ([]rag.Passage, error) {
	r.calls++
	r.lastK = k
	return r.passages, r.err
}

type fakePlanner struct {
	plan         rag.Content
	preferVisual bool
	query        string
	panics       bool
}

func (p *fakePlanner) Plan(_ context.Context, q string, _ []rag.Passage, preferVisual bool) rag.Content {
	if p.panics {
		panic("planner exploded")
	}
	p.query = q
	p.preferVisual = preferVisual
	return p.plan
}

type fakeGenerator struct {
	chunks  []string
	answer  string
	err     error
	streams int
	calls   int
}

func (g *fakeGenerator) Generate(context.Context, string, ...llm.Option) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *fakeGenerator) Stream(_ context.Context, _ []llm.Message, onChunk llm.ChunkHandler, _ ...llm.Option) (string, error) {
	g.streams++
	var sb strings.Builder
	for _, c := range g.chunks {
		if err := onChunk(c); err != nil {
			return sb.String(), err
		}
		sb.WriteString(c)
	}
	if errors.Is(g.err, llm.ErrStreamReplaced) {
		return g.answer, g.err
	}
	if g.err != nil {
		return sb.String(), g.err
	}
	return sb.String(), nil
}

type fakeTools struct {
	result rag.Content
	called *rag.ToolCall
}

func (f *fakeTools) Execute(_ context.Context, call *rag.ToolCall) rag.Content {
	f.called = call
	return f.result
}

type fakeAgent struct {
	enhanced   string
	improved   string
	enhanceErr error
	restructs  int
	evaluates  int
	evaluated  string
}

func (a *fakeAgent) Restructure(_ context.Context, q, _ string) (agent.Enhancement, error) {
	a.restructs++
	if a.enhanceErr != nil {
		return agent.Enhancement{Original: q, Enhanced: q}, a.enhanceErr
	}
	return agent.Enhancement{Original: q, Enhanced: a.enhanced, Confidence: 0.9, Reasoning: "clearer"}, nil
}

func (a *fakeAgent) Evaluate(_ context.Context, response, _ string) (agent.Evaluation, error) {
	a.evaluates++
	a.evaluated = response
	return agent.Evaluation{Original: response, Improved: a.improved, Confidence: 0.8}, nil
}

type fakeContext struct {
	summary string
	err     error
}

func (c fakeContext) ContextSummary(context.Context) (string, error) { return c.summary, c.err }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	router    Router
	embedder  *countingEmbedder
	retriever *fakeRetriever
	planner   *fakePlanner
	generator *fakeGenerator
	tools     *fakeTools
	agent     *fakeAgent
	events    *recordingPublisher
}

func newFixture(d router.Decision) *fixture {
	return &fixture{
		router:    fixedRouter{d},
		embedder:  &countingEmbedder{},
		retriever: &fakeRetriever{},
		planner:   &fakePlanner{plan: rag.Text{}},
		generator: &fakeGenerator{answer: "Block A produced 1200 bopd in March."},
		tools:     &fakeTools{},
		agent:     &fakeAgent{enhanced: "enhanced question"},
		events:    &recordingPublisher{},
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(Dependencies{
		Router:    f.router,
		Embedder:  f.embedder,
		Retriever: f.retriever,
		Planner:   f.planner,
		Generator: f.generator,
		Tools:     f.tools,
		Enhancer:  f.agent,
		Evaluator: f.agent,
		Events:    f.events,
		Logger:    logger.NewNopLogger(),
	}, Config{})
}

type sink struct {
	events []message.Event
	failAt int // 1-based; 0 never fails
}

func (s *sink) emit(e message.Event) error {
	if s.failAt > 0 && len(s.events)+1 >= s.failAt {
		return errors.New("broken pipe")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *sink) types() []message.Type {
	out := make([]message.Type, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func (s *sink) count(typ message.Type) int {
	n := 0
	for _, e := range s.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// step matches an event by type and, for status events, by stage.
type step struct {
	typ   message.Type
	stage string
}

func isSubsequence(got []message.Event, want []step) bool {
	i := 0
	for _, e := range got {
		if i == len(want) {
			break
		}
		if e.Type == want[i].typ && (want[i].stage == "" || e.Stage == want[i].stage) {
			i++
		}
	}
	return i == len(want)
}

// assertValidTurn checks the structural rules every turn must satisfy: it
// starts with the user echo, stream frames are balanced and well ordered,
// and exactly one final answer is sent.
func assertValidTurn(t *testing.T, got []message.Event) {
	t.Helper()
	require.NotEmpty(t, got)
	assert.Equal(t, message.TypeUser, got[0].Type)

	open, terminals := false, 0
	for _, e := range got {
		switch e.Type {
		case message.TypeStreamStart:
			assert.False(t, open, "nested stream_start")
			open = true
			terminals++
		case message.TypeStreamChunk:
			assert.True(t, open, "stream_chunk outside a stream")
		case message.TypeStreamEnd:
			assert.True(t, open, "stream_end without stream_start")
			open = false
		case message.TypeAnswer, message.TypeTable, message.TypeViz:
			assert.False(t, open, "terminal event inside a stream")
			terminals++
		}
	}
	assert.False(t, open, "stream left open")
	assert.Equal(t, 1, terminals, "exactly one final answer per turn")
}

func TestRun_GreetingTakesFastPath(t *testing.T) {
	f := newFixture(router.Decision{})
	f.router = router.NewRouter(f.embedder, logger.NewNopLogger())
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "Hi", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.Equal(t, 1, s.count(message.TypeAnswer))
	assert.Equal(t, router.FastResponse(router.IntentGreeting), s.events[len(s.events)-1].Payload)
	assert.Empty(t, f.embedder.calls)
	assert.Zero(t, f.retriever.calls)
	assert.Zero(t, f.agent.restructs)

	require.Len(t, f.events.events, 1)
	done := f.events.events[0].(events.TurnCompleted)
	assert.Equal(t, outcomeFastPath, done.Outcome)
}

func TestRun_EnhancedDocumentQueryStreams(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDocumentQuery, 0.8))
	f.retriever.passages = []rag.Passage{{FileID: "f1", Text: "Block A produced 1200 bopd.", Page: 3, Similarity: 0.91}}
	f.generator.chunks = []string{"Block A ", "produced ", "1200 bopd."}
	f.agent.improved = "Block A produced 1,200 bopd in March."
	s := &sink{}

	q := rag.Query{Text: strings.Repeat("production of block A ", 7)[:150], TenantID: "demo", Mode: rag.ModeEnhanced}
	err := f.pipeline().Run(context.Background(), q, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.True(t, isSubsequence(s.events, []step{
		{message.TypeStatus, message.StageClassify},
		{message.TypeStatus, message.StageEnhance},
		{message.TypeResult, ""},
		{message.TypeStatus, message.StageRetrieve},
		{message.TypeStreamStart, ""},
		{message.TypeStreamChunk, ""},
		{message.TypeStreamEnd, ""},
		{message.TypeEvaluation, ""},
		{message.TypeAnswerEnhanced, ""},
	}), "unexpected order: %v", s.types())

	assert.Equal(t, 3, s.count(message.TypeStreamChunk))
	assert.Equal(t, 1, s.count(message.TypeEnhancement))
	assert.Equal(t, []string{"enhanced question"}, f.embedder.calls)
	assert.Equal(t, "enhanced question", f.planner.query)
	assert.Equal(t, 8, f.retriever.lastK)
}

func TestRun_DatabaseContextIsReportedAsAStage(t *testing.T) {
	tests := []struct {
		name   string
		source fakeContext
		status string
	}{
		{name: "summary loaded", source: fakeContext{summary: "3 wells, 2 blocks"}, status: message.StatusComplete},
		{name: "store down", source: fakeContext{err: errors.New("connection refused")}, status: message.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(router.Decide(router.IntentDocumentQuery, 0.8))
			f.retriever.passages = []rag.Passage{{FileID: "f1", Text: "Block A produced 1200 bopd.", Similarity: 0.9}}
			s := &sink{}

			p := f.pipeline()
			p.deps.Context = tt.source
			err := p.Run(context.Background(), rag.Query{Text: "production of block A", Mode: rag.ModeEnhanced}, s.emit)

			require.NoError(t, err)
			assertValidTurn(t, s.events)

			var got []string
			for _, e := range s.events {
				if e.Type == message.TypeStatus && e.Stage == message.StageContext {
					got = append(got, e.Status)
				}
			}
			assert.Equal(t, []string{message.StatusProcessing, tt.status}, got)
			assert.True(t, isSubsequence(s.events, []step{
				{message.TypeStatus, message.StageClassify},
				{message.TypeStatus, message.StageContext},
				{message.TypeStatus, message.StageRetrieve},
			}), "unexpected order: %v", s.types())
		})
	}
}

func TestRun_ShortAnswerIsSentWhole(t *testing.T) {
	f := newFixture(router.Decide(router.IntentGeneral, 0.55))
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "what changed in the last quarter", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.Zero(t, f.generator.streams)
	assert.Zero(t, s.count(message.TypeStreamStart))
	assert.Equal(t, 1, s.count(message.TypeAnswer))
	// Unchanged evaluation: no answer_enhanced.
	assert.Equal(t, 1, s.count(message.TypeEvaluation))
	assert.Zero(t, s.count(message.TypeAnswerEnhanced))
}

func TestRun_GenerationFailureApologizesOnce(t *testing.T) {
	f := newFixture(router.Decide(router.IntentGeneral, 0.55))
	f.generator.err = errors.New("all providers down")
	p := f.pipeline()

	s := &sink{}
	err := p.Run(context.Background(), rag.Query{Text: "how much gas did block B produce", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	last := s.events[len(s.events)-1]
	assert.Equal(t, message.TypeAnswer, last.Type)
	assert.Equal(t, apology, last.Payload)
	assert.Zero(t, f.agent.evaluates)

	// The pipeline keeps no per-turn state; the next turn works.
	f.generator.err = nil
	next := &sink{}
	require.NoError(t, p.Run(context.Background(), rag.Query{Text: "how much oil did block B produce", Mode: rag.ModeEnhanced}, next.emit))
	assertValidTurn(t, next.events)
	assert.Contains(t, next.types(), message.TypeAnswer)
	assert.NotEqual(t, apology, next.events[len(next.events)-1].Payload)
}

func TestRun_StreamFailureAfterChunksClosesStream(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDocumentQuery, 0.9))
	f.retriever.passages = make([]rag.Passage, 5)
	f.generator.chunks = []string{"partial "}
	f.generator.err = errors.New("stream cut")
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "summarize the well report", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.Equal(t, 1, s.count(message.TypeStreamEnd))
	assert.Zero(t, s.count(message.TypeAnswer))
	assert.Zero(t, f.agent.evaluates)
}

func TestRun_ReplacedStreamIsClosedAndAnsweredWhole(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDocumentQuery, 0.9))
	f.retriever.passages = make([]rag.Passage, 5)
	f.generator.chunks = []string{"partial "}
	f.generator.err = llm.ErrStreamReplaced
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "summarize the well report", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assert.True(t, isSubsequence(s.events, []step{
		{message.TypeStreamStart, ""},
		{message.TypeStreamChunk, ""},
		{message.TypeStreamEnd, ""},
		{message.TypeAnswer, ""},
		{message.TypeEvaluation, ""},
	}), "unexpected order: %v", s.types())
	assert.Equal(t, 1, s.count(message.TypeStreamChunk))
	assert.Equal(t, 1, s.count(message.TypeAnswer))
	for _, e := range s.events {
		if e.Type == message.TypeAnswer {
			assert.Equal(t, f.generator.answer, e.Payload)
		}
	}
	assert.Equal(t, f.generator.answer, f.agent.evaluated, "the evaluated answer is the one the client received")
}

func TestRun_ToolPlanRendersTable(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDataAnalysis, 0.9))
	call := &rag.ToolCall{Name: "files.search", Args: map[string]interface{}{"q": "seismic"}}
	f.planner.plan = call
	f.tools.result = &rag.Table{Columns: []string{"filename"}, Rows: []map[string]interface{}{{"filename": "s.segy"}}}
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "list seismic files in block A", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.Same(t, call, f.tools.called)
	assert.Equal(t, 1, s.count(message.TypeTable))
	assert.Zero(t, f.generator.calls+f.generator.streams)
	assert.Zero(t, f.agent.evaluates)
}

func TestRun_PlannedChartIsSentDirectly(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDataAnalysis, 0.9))
	f.planner.plan = &rag.Chart{Title: "Oil", Series: []rag.Series{{Name: "Oil", X: []interface{}{"2024-01"}, Y: []interface{}{10}}}}
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "plot oil for block A", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.Equal(t, 1, s.count(message.TypeViz))
}

func TestRun_SinglePassModes(t *testing.T) {
	tests := []struct {
		name         string
		mode         rag.Mode
		preferVisual bool
	}{
		{"normal", rag.ModeNormal, false},
		{"query", rag.ModeQuery, false},
		{"visualization", rag.ModeVisualization, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(router.Decide(router.IntentDocumentQuery, 0.9))
			s := &sink{}

			err := f.pipeline().Run(context.Background(), rag.Query{Text: "what is the latest report about", Mode: tt.mode}, s.emit)

			require.NoError(t, err)
			assertValidTurn(t, s.events)
			assert.Zero(t, f.agent.restructs)
			assert.Zero(t, f.agent.evaluates)
			assert.Zero(t, s.count(message.TypeEnhancement))
			assert.Zero(t, s.count(message.TypeEvaluation))
			assert.Equal(t, 5, f.retriever.lastK)
			assert.Equal(t, tt.preferVisual, f.planner.preferVisual)
			assert.Equal(t, "what is the latest report about", f.planner.query)
		})
	}
}

func TestRun_EnhancementFailureKeepsOriginalQuery(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDocumentQuery, 0.9))
	f.agent.enhanceErr = errors.New("agent down")
	s := &sink{}

	q := "what does the drilling report say about block C"
	err := f.pipeline().Run(context.Background(), rag.Query{Text: q, Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	require.Equal(t, 1, s.count(message.TypeEnhancement))
	assert.Equal(t, []string{q}, f.embedder.calls)
	assert.Equal(t, q, f.planner.query)
}

func TestRun_RetrievalFailureContinuesWithoutPassages(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDocumentQuery, 0.9))
	f.retriever.err = errors.New("pgvector down")
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "find the completion report for well X-1", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.Zero(t, s.count(message.TypeResult))

	var retrieveErr bool
	for _, e := range s.events {
		if e.Type == message.TypeStatus && e.Stage == message.StageRetrieve && e.Status == message.StatusError {
			retrieveErr = true
		}
	}
	assert.True(t, retrieveErr)
	assert.Equal(t, 1, s.count(message.TypeAnswer))
}

func TestRun_PanicReportsErrorAndApologizes(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDocumentQuery, 0.9))
	f.planner.panics = true
	s := &sink{}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "what does the drilling report say", Mode: rag.ModeEnhanced}, s.emit)

	require.NoError(t, err)
	assertValidTurn(t, s.events)
	assert.True(t, isSubsequence(s.events, []step{
		{message.TypeStatus, message.StageError},
		{message.TypeAnswer, ""},
	}))
	assert.Equal(t, apology, s.events[len(s.events)-1].Payload)

	done := f.events.events[0].(events.TurnCompleted)
	assert.Equal(t, outcomeError, done.Outcome)
}

func TestRun_ConnectionLost(t *testing.T) {
	f := newFixture(router.Decide(router.IntentDocumentQuery, 0.9))
	s := &sink{failAt: 3}

	err := f.pipeline().Run(context.Background(), rag.Query{Text: "what does the drilling report say", Mode: rag.ModeEnhanced}, s.emit)

	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrConnectionLost)
	assert.Len(t, s.events, 2)
	assert.Zero(t, f.generator.calls+f.generator.streams)

	done := f.events.events[0].(events.TurnCompleted)
	assert.Equal(t, outcomeDisconnected, done.Outcome)
}

func TestProfileFor(t *testing.T) {
	cfg := Config{TopK: 10, FastModeTopK: 4}

	assert.Equal(t, ModeProfile{Mode: rag.ModeEnhanced, TopK: 10, Enhance: true, Evaluate: true}, ProfileFor(rag.ModeEnhanced, cfg))
	assert.Equal(t, ModeProfile{Mode: rag.ModeEnhanced, TopK: 10, Enhance: true, Evaluate: true}, ProfileFor("", cfg))
	assert.Equal(t, ModeProfile{Mode: rag.ModeNormal, TopK: 4}, ProfileFor(rag.ModeNormal, cfg))
	assert.Equal(t, ModeProfile{Mode: rag.ModeVisualization, TopK: 4, PreferVisual: true}, ProfileFor(rag.ModeVisualization, cfg))
}

func TestShouldStream(t *testing.T) {
	assert.False(t, shouldStream("short", nil))
	assert.True(t, shouldStream(strings.Repeat("x", 101), nil))
	assert.True(t, shouldStream("short", make([]rag.Passage, 4)))
	assert.False(t, shouldStream("short", make([]rag.Passage, 3)))
}
