// Package agent holds the prompt-enhancement and response-evaluation
// collaborators. Both are best effort: on failure they hand back the original
// text at confidence 0 together with the cause.
package agent

import (
	"context"
)

const rawOutputConfidence = 0.7

type Enhancement struct {
	Original    string   `json:"original"`
	Enhanced    string   `json:"enhanced"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Suggestions []string `json:"suggestions"`
}

type Evaluation struct {
	Original    string   `json:"-"`
	Improved    string   `json:"-"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Suggestions []string `json:"suggestions"`
}

// Changed reports whether the evaluator rewrote the response.
func (e Evaluation) Changed() bool {
	return e.Improved != "" && e.Improved != e.Original
}

// Enhancer rewrites a user query into a retrieval-friendly form.
type Enhancer interface {
	Restructure(ctx context.Context, query, context string) (Enhancement, error)
}

// Evaluator reviews a generated response and may return an improved one.
type Evaluator interface {
	Evaluate(ctx context.Context, response, query string) (Evaluation, error)
}

// Agent is both collaborators behind one backend.
type Agent interface {
	Enhancer
	Evaluator
}

func unchangedQuery(query, reason string) Enhancement {
	return Enhancement{
		Original:    query,
		Enhanced:    query,
		Confidence:  0,
		Reasoning:   reason,
		Suggestions: []string{},
	}
}

func unchangedResponse(response, reason string) Evaluation {
	return Evaluation{
		Original:    response,
		Improved:    response,
		Confidence:  0,
		Reasoning:   reason,
		Suggestions: []string{},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
