package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zara",
			Name:      "turns_total",
			Help:      "Completed conversation turns",
		},
		[]string{"mode", "intent", "outcome"}, // outcome: "fast_path", "text", "table", "chart", "tool", "apology", "error"
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zara",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"stage"},
	)

	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zara",
			Name:      "provider_calls_total",
			Help:      "Upstream provider calls by backend and result",
		},
		[]string{"kind", "backend", "status"}, // kind: "llm", "llm_stream", "embedding"
	)

	ProviderFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zara",
			Name:      "provider_fallbacks_total",
			Help:      "Times a fallback path was taken",
		},
		[]string{"kind"}, // "next_backend", "mid_stream_oneshot", "zero_vector"
	)

	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zara",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"tier", "result"},
	)

	RetrievedPassages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "zara",
			Name:      "retrieved_passages",
			Help:      "Number of passages returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zara",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and result",
		},
		[]string{"tool", "status"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zara",
			Name:      "sessions_active",
			Help:      "Number of open WebSocket sessions",
		},
	)

	HeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zara",
			Name:      "heartbeats_total",
			Help:      "Heartbeat frames sent",
		},
	)
)
