package router

// Decision is the routing outcome for a single query. It is produced once per
// turn and never modified afterwards.
type Decision struct {
	Intent           Intent  `json:"intent"`
	NeedsRetrieval   bool    `json:"needs_retrieval"`
	NeedsImprovement bool    `json:"needs_improvement"`
	LatencyBudgetMs  int     `json:"latency_budget_ms"`
	MaxTokens        int     `json:"max_tokens"`
	Confidence       float64 `json:"confidence"`
}

// IsFastPath reports whether the turn can be answered with a canned reply.
func (d Decision) IsFastPath() bool {
	return !d.NeedsRetrieval && !d.NeedsImprovement
}

func fastPathDecision(intent Intent) Decision {
	return Decision{
		Intent:          intent,
		LatencyBudgetMs: 300,
		MaxTokens:       120,
		Confidence:      0.95,
	}
}

func trivialDecision() Decision {
	return Decision{
		Intent:          IntentTrivial,
		LatencyBudgetMs: 400,
		MaxTokens:       150,
		Confidence:      0.8,
	}
}

// Decide maps a classified intent and its confidence to stage flags and
// budgets. First matching row wins.
func Decide(intent Intent, confidence float64) Decision {
	switch {
	case intent == IntentDocumentQuery && confidence > 0.7:
		return Decision{IntentDocumentQuery, true, true, 3000, 800, confidence}

	case intent == IntentDataAnalysis && confidence > 0.6:
		return Decision{IntentDataAnalysis, true, true, 3500, 1000, confidence}

	case intent == IntentFileOperations:
		return Decision{IntentFileOperations, false, false, 1000, 300, confidence}

	case confidence < 0.5 || intent == IntentClarification:
		return Decision{IntentClarification, false, true, 1500, 400, confidence}

	default:
		return Decision{IntentGeneral, true, true, 2500, 600, confidence}
	}
}
