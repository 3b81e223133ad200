package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"zara-assistant-be/pkg/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrIncompleteStream is returned when the server closed a stream before
// sending a finish reason.
var ErrIncompleteStream = errors.New("openai stream ended before completion")

// OpenAIProvider talks to any OpenAI-compatible chat completions API
// (OpenAI itself, a LiteLLM proxy, vLLM, ...).
type OpenAIProvider struct {
	client openai.Client
	model  string
}

var _ llm.LLMProvider = &OpenAIProvider{}

// NewOpenAIProvider builds the SDK client. SDK retries are off; the gateway
// owns retry and fallback.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai:" + p.model
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(history, options))
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices from openai api")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	// Wrap single prompt into a user message
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

// ChatStream relays delta content. A stream that ends without a finish
// reason is reported as ErrIncompleteStream along with the partial text.
func (p *OpenAIProvider) ChatStream(ctx context.Context, history []llm.Message, onChunk llm.ChunkHandler, options ...llm.Option) (string, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(history, options))
	defer stream.Close()

	var full strings.Builder
	finished := false
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finished = true
		}
		if choice.Delta.Content == "" {
			continue
		}

		full.WriteString(choice.Delta.Content)
		if err := onChunk(choice.Delta.Content); err != nil {
			return full.String(), err
		}
	}

	if err := stream.Err(); err != nil {
		return full.String(), fmt.Errorf("openai stream: %w", err)
	}
	if !finished {
		return full.String(), ErrIncompleteStream
	}
	return full.String(), nil
}

func (p *OpenAIProvider) params(history []llm.Message, options []llm.Option) openai.ChatCompletionNewParams {
	opts := llm.ApplyOptions(llm.Options{Model: p.model, MaxTokens: 800, Temperature: 0.2}, options...)

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(opts.Model),
		Messages:    toMessages(opts.WithSystemMessage(history)),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}

func toMessages(history []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
