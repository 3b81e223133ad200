package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/embedding"
)

// Embedder is the slice of the embedding gateway the router needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Seed phrases per classifiable intent. Order matters for ties.
var defaultSeeds = []struct {
	intent  Intent
	phrases []string
}{
	{IntentDocumentQuery, []string{
		"what's in my document", "summarize file", "find information in pdf",
		"search document", "show me content from", "what does the report say",
	}},
	{IntentDataAnalysis, []string{
		"create chart", "show graph", "analyze data", "plot trends",
		"compare data", "statistics", "visualization",
	}},
	{IntentFileOperations, []string{
		"upload file", "delete document", "list files", "manage documents",
	}},
	{IntentClarification, []string{
		"I don't understand", "can you explain", "what do you mean",
		"clarify", "more details",
	}},
}

// seedWarmupTimeout bounds the shared warm-up, which outlives the request
// that started it.
const seedWarmupTimeout = 30 * time.Second

type seedVector struct {
	intent Intent
	phrase string
	vec    []float32
}

// Router classifies queries. Construct one per process and share it; seed
// embeddings are computed on first use and reused afterwards.
type Router struct {
	embedder Embedder
	logger   logger.ILogger

	warmup singleflight.Group
	mu     sync.RWMutex
	seeds  []seedVector
}

func NewRouter(embedder Embedder, log logger.ILogger) *Router {
	return &Router{
		embedder: embedder,
		logger:   log,
	}
}

// Route never fails: classification problems degrade to the general branch
// of the decision table.
func (r *Router) Route(ctx context.Context, query string) Decision {
	clean := strings.ToLower(strings.TrimSpace(query))

	// Stage 1: fixed patterns
	if intent, ok := matchFastPattern(clean); ok {
		r.logger.Debug("ROUTER", "Fast pattern matched", map[string]interface{}{"intent": intent})
		return fastPathDecision(intent)
	}

	// Stage 2: very short queries
	if len(strings.Fields(query)) <= 3 {
		return trivialDecision()
	}

	// Stage 3: nearest seed phrase
	intent, confidence := r.classify(ctx, query)

	// Stage 4: decision table
	d := Decide(intent, confidence)
	r.logger.Info("ROUTER", "Query routed", map[string]interface{}{
		"classified": intent,
		"intent":     d.Intent,
		"confidence": confidence,
		"retrieval":  d.NeedsRetrieval,
		"improve":    d.NeedsImprovement,
	})
	return d
}

func (r *Router) classify(ctx context.Context, query string) (Intent, float64) {
	qv, err := r.embedder.Embed(ctx, query)
	if err != nil || embedding.IsZero(qv) {
		r.logger.Warn("ROUTER", "Query embedding unavailable, using general", map[string]interface{}{"error": errString(err)})
		return IntentGeneral, 0.5
	}

	seeds := r.seedVectors(ctx)
	if len(seeds) == 0 {
		return IntentGeneral, 0.5
	}

	bestIntent, bestScore := IntentGeneral, 0.0
	for _, s := range seeds {
		if score := embedding.CosineSimilarity(qv, s.vec); score > bestScore {
			bestIntent, bestScore = s.intent, score
		}
	}
	return bestIntent, bestScore
}

// seedVectors returns the embedded seed catalogue. Concurrent callers share
// one warm-up and each stops waiting when its own ctx ends. A partial failure
// is not cached so a later query retries the missing seeds.
func (r *Router) seedVectors(ctx context.Context) []seedVector {
	r.mu.RLock()
	seeds := r.seeds
	r.mu.RUnlock()
	if seeds != nil {
		return seeds
	}

	ch := r.warmup.DoChan("seeds", func() (interface{}, error) {
		warmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), seedWarmupTimeout)
		defer cancel()

		out, complete := r.embedSeeds(warmCtx)
		if complete {
			r.mu.Lock()
			r.seeds = out
			r.mu.Unlock()
		}
		return out, nil
	})

	select {
	case res := <-ch:
		return res.Val.([]seedVector)
	case <-ctx.Done():
		r.logger.Debug("ROUTER", "Stopped waiting for seed warm-up", map[string]interface{}{"error": ctx.Err().Error()})
		return nil
	}
}

func (r *Router) embedSeeds(ctx context.Context) ([]seedVector, bool) {
	var out []seedVector
	complete := true
	for _, group := range defaultSeeds {
		for _, phrase := range group.phrases {
			v, err := r.embedder.Embed(ctx, phrase)
			if err != nil || embedding.IsZero(v) {
				complete = false
				continue
			}
			out = append(out, seedVector{intent: group.intent, phrase: phrase, vec: v})
		}
	}
	return out, complete
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
