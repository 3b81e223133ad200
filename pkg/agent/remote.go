package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zara-assistant-be/internal/pkg/logger"
)

// RemoteAgent calls the standalone agent service over HTTP.
type RemoteAgent struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  logger.ILogger
}

var _ Agent = &RemoteAgent{}

type restructureRequest struct {
	OriginalPrompt string `json:"original_prompt"`
	Context        string `json:"context,omitempty"`
	UserIntent     string `json:"user_intent,omitempty"`
	Domain         string `json:"domain"`
}

type evaluateRequest struct {
	ResponseContent    string   `json:"response_content"`
	OriginalPrompt     string   `json:"original_prompt"`
	ResponseFormat     string   `json:"response_format"`
	EvaluationCriteria []string `json:"evaluation_criteria"`
}

// agentResponse is the envelope both agent endpoints return
type agentResponse struct {
	Success         bool     `json:"success"`
	AgentType       string   `json:"agent_type"`
	OriginalInput   string   `json:"original_input"`
	ProcessedOutput string   `json:"processed_output"`
	ConfidenceScore float64  `json:"confidence_score"`
	Reasoning       string   `json:"reasoning"`
	Suggestions     []string `json:"suggestions"`
}

func NewRemoteAgent(baseURL string, timeout time.Duration, log logger.ILogger) *RemoteAgent {
	return &RemoteAgent{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
		logger:  log,
	}
}

func (a *RemoteAgent) Restructure(ctx context.Context, query, queryContext string) (Enhancement, error) {
	var resp agentResponse
	err := a.post(ctx, "/agent/restructure-prompt", restructureRequest{
		OriginalPrompt: query,
		Context:        queryContext,
		Domain:         "general",
	}, &resp)
	if err != nil {
		a.logger.Warn("AGENT", "Remote restructure failed", map[string]interface{}{"error": err.Error()})
		return unchangedQuery(query, err.Error()), err
	}

	enhanced := strings.TrimSpace(resp.ProcessedOutput)
	if enhanced == "" {
		enhanced = query
	}
	return Enhancement{
		Original:    query,
		Enhanced:    enhanced,
		Confidence:  resp.ConfidenceScore,
		Reasoning:   resp.Reasoning,
		Suggestions: nonNil(resp.Suggestions),
	}, nil
}

func (a *RemoteAgent) Evaluate(ctx context.Context, response, query string) (Evaluation, error) {
	var resp agentResponse
	err := a.post(ctx, "/agent/evaluate-response", evaluateRequest{
		ResponseContent:    response,
		OriginalPrompt:     query,
		ResponseFormat:     "text",
		EvaluationCriteria: []string{"clarity", "completeness", "relevance"},
	}, &resp)
	if err != nil {
		a.logger.Warn("AGENT", "Remote evaluation failed", map[string]interface{}{"error": err.Error()})
		return unchangedResponse(response, err.Error()), err
	}

	return Evaluation{
		Original:    response,
		Improved:    strings.TrimSpace(resp.ProcessedOutput),
		Confidence:  resp.ConfidenceScore,
		Reasoning:   resp.Reasoning,
		Suggestions: nonNil(resp.Suggestions),
	}, nil
}

func (a *RemoteAgent) post(ctx context.Context, path string, payload interface{}, out *agentResponse) error {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("agent %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode agent response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("agent %s reported failure: %s", path, out.Reasoning)
	}
	return nil
}
