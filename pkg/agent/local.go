package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/llm"
)

// Generator is the one-shot slice of the provider gateway.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error)
}

// LocalAgent runs the enhancement and evaluation prompts on the gateway
// instead of the remote agent service.
type LocalAgent struct {
	generator Generator
	timeout   time.Duration
	logger    logger.ILogger
}

var _ Agent = &LocalAgent{}

func NewLocalAgent(generator Generator, timeout time.Duration, log logger.ILogger) *LocalAgent {
	return &LocalAgent{
		generator: generator,
		timeout:   timeout,
		logger:    log,
	}
}

type restructureOutput struct {
	RestructuredPrompt string   `json:"restructured_prompt"`
	ConfidenceScore    *float64 `json:"confidence_score"`
	Reasoning          string   `json:"reasoning"`
	Suggestions        []string `json:"suggestions"`
	ImprovementsMade   []string `json:"improvements_made"`
}

type evaluationOutput struct {
	EvaluationScore      float64  `json:"evaluation_score"`
	ImprovedResponse     string   `json:"improved_response"`
	Strengths            []string `json:"strengths"`
	Weaknesses           []string `json:"weaknesses"`
	SpecificImprovements []string `json:"specific_improvements"`
	Reasoning            string   `json:"reasoning"`
	ConfidenceScore      *float64 `json:"confidence_score"`
}

func (a *LocalAgent) Restructure(ctx context.Context, query, queryContext string) (Enhancement, error) {
	raw, err := a.generate(ctx, restructurePrompt(query, queryContext))
	if err != nil {
		a.logger.Warn("AGENT", "Local restructure failed", map[string]interface{}{"error": err.Error()})
		return unchangedQuery(query, err.Error()), err
	}

	var out restructureOutput
	if err := decodeObject(raw, &out); err != nil || strings.TrimSpace(out.RestructuredPrompt) == "" {
		return Enhancement{
			Original:    query,
			Enhanced:    strings.TrimSpace(raw),
			Confidence:  rawOutputConfidence,
			Reasoning:   "Response could not be parsed as JSON, returning raw output",
			Suggestions: []string{},
		}, nil
	}

	return Enhancement{
		Original:    query,
		Enhanced:    strings.TrimSpace(out.RestructuredPrompt),
		Confidence:  confidenceOr(out.ConfidenceScore, rawOutputConfidence),
		Reasoning:   out.Reasoning,
		Suggestions: nonNil(out.Suggestions),
	}, nil
}

func (a *LocalAgent) Evaluate(ctx context.Context, response, query string) (Evaluation, error) {
	raw, err := a.generate(ctx, evaluationPrompt(response, query))
	if err != nil {
		a.logger.Warn("AGENT", "Local evaluation failed", map[string]interface{}{"error": err.Error()})
		return unchangedResponse(response, err.Error()), err
	}

	var out evaluationOutput
	if err := decodeObject(raw, &out); err != nil {
		return Evaluation{
			Original:    response,
			Improved:    strings.TrimSpace(raw),
			Confidence:  rawOutputConfidence,
			Reasoning:   "Response could not be parsed as JSON, returning raw output",
			Suggestions: []string{},
		}, nil
	}

	return Evaluation{
		Original:    response,
		Improved:    strings.TrimSpace(out.ImprovedResponse),
		Confidence:  confidenceOr(out.ConfidenceScore, rawOutputConfidence),
		Reasoning:   out.Reasoning,
		Suggestions: nonNil(out.SpecificImprovements),
	}, nil
}

func (a *LocalAgent) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.generator.Generate(callCtx, prompt, llm.WithTemperature(0.7), llm.WithMaxTokens(2000))
}

func restructurePrompt(query, queryContext string) string {
	if strings.TrimSpace(queryContext) == "" {
		queryContext = "No additional context provided"
	}

	var prompt strings.Builder
	prompt.WriteString("You are a Prompt Restructuring Agent specializing in optimizing user queries for AI systems.\n\n")
	prompt.WriteString("Restructure the user's prompt to be more specific and actionable, better formatted for retrieval, ")
	prompt.WriteString("and enhanced with relevant context. Preserve the user's original intent.\n\n")
	fmt.Fprintf(&prompt, "Original Prompt: %q\n", query)
	fmt.Fprintf(&prompt, "Context: %q\n\n", queryContext)
	prompt.WriteString("Provide your response in the following JSON format:\n")
	prompt.WriteString(`{
    "restructured_prompt": "<improved version of the prompt>",
    "confidence_score": <0.0-1.0>,
    "reasoning": "<explanation of changes made>",
    "suggestions": ["<list of additional suggestions>"],
    "improvements_made": ["<list of specific improvements>"]
}`)
	return prompt.String()
}

func evaluationPrompt(response, query string) string {
	var prompt strings.Builder
	prompt.WriteString("You are a Response Evaluation Agent that analyzes and optimizes AI-generated responses.\n\n")
	prompt.WriteString("Evaluation Criteria: clarity, completeness, relevance\n")
	prompt.WriteString("Response Format: text\n\n")
	fmt.Fprintf(&prompt, "Original Prompt: %q\n", query)
	fmt.Fprintf(&prompt, "Response Content: %q\n\n", response)
	prompt.WriteString("Provide your evaluation in the following JSON format:\n")
	prompt.WriteString(`{
    "evaluation_score": <0.0-1.0>,
    "improved_response": "<enhanced version of the response>",
    "strengths": ["<list of response strengths>"],
    "weaknesses": ["<list of areas for improvement>"],
    "specific_improvements": ["<list of specific changes made>"],
    "reasoning": "<detailed explanation of evaluation>",
    "confidence_score": <0.0-1.0>
}`)
	return prompt.String()
}

// decodeObject unmarshals the outermost JSON object found in raw.
func decodeObject(raw string, out interface{}) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in agent output")
	}
	return json.Unmarshal([]byte(raw[start:end+1]), out)
}

func confidenceOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	switch {
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	}
	return *v
}
