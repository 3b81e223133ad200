package executor

import (
	"time"

	"zara-assistant-be/pkg/rag"
)

// Config holds the pipeline-wide limits.
type Config struct {
	TopK            int
	FastModeTopK    int
	QuickTimeout    time.Duration // embedding, retrieval, tools, agent calls
	GenerateTimeout time.Duration // planner and answer generation
	Temperature     float64
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 8
	}
	if c.FastModeTopK <= 0 {
		c.FastModeTopK = 5
	}
	if c.QuickTimeout <= 0 {
		c.QuickTimeout = 10 * time.Second
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 60 * time.Second
	}
	return c
}

// ModeProfile is the per-mode shape of the pipeline. Single-pass modes never
// enhance or evaluate, whatever the router decided.
type ModeProfile struct {
	Mode         rag.Mode
	TopK         int
	Enhance      bool
	Evaluate     bool
	PreferVisual bool
}

func ProfileFor(mode rag.Mode, cfg Config) ModeProfile {
	cfg = cfg.withDefaults()

	switch mode {
	case rag.ModeNormal, rag.ModeQuery:
		return ModeProfile{Mode: mode, TopK: cfg.FastModeTopK}
	case rag.ModeVisualization:
		return ModeProfile{Mode: mode, TopK: cfg.FastModeTopK, PreferVisual: true}
	default:
		return ModeProfile{Mode: rag.ModeEnhanced, TopK: cfg.TopK, Enhance: true, Evaluate: true}
	}
}
