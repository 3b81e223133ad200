package llm

import (
	"context"
	"errors"
)

// ErrStreamReplaced is returned with the full text when a stream broke off
// and the fallback answer does not continue what was already relayed. The
// caller must close its stream and deliver the returned text whole.
var ErrStreamReplaced = errors.New("stream replaced by one-shot answer")

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	System      string // Prepended as a system message when set
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithSystem(system string) Option {
	return func(o *Options) {
		o.System = system
	}
}

// ApplyOptions resolves opts on top of the given defaults.
func ApplyOptions(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// WithSystemMessage returns history with o.System prepended, if set.
func (o Options) WithSystemMessage(history []Message) []Message {
	if o.System == "" {
		return history
	}
	out := make([]Message, 0, len(history)+1)
	out = append(out, Message{Role: "system", Content: o.System})
	return append(out, history...)
}

// ChunkHandler receives streamed text in arrival order. Returning an error
// aborts the stream; the provider returns that error unchanged.
type ChunkHandler func(chunk string) error

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// ChatStream relays partial output to onChunk and returns the
	// concatenated text received so far, even on error.
	ChatStream(ctx context.Context, history []Message, onChunk ChunkHandler, options ...Option) (string, error)
}
