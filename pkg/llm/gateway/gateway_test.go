package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/fallback"
	"zara-assistant-be/pkg/llm"
)

type fakeProvider struct {
	name        string
	chatErrs    []error // consumed one per call; nil entry means success
	chatReply   string
	chunks      []string
	failAfter   int // stream fails after this many chunks; -1 means never
	streamErr   error
	hang        bool // block until the call context ends
	chatCalls   int
	streamCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.chatCalls++
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if len(f.chatErrs) > 0 {
		err := f.chatErrs[0]
		f.chatErrs = f.chatErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.chatReply, nil
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, onChunk llm.ChunkHandler, options ...llm.Option) (string, error) {
	f.streamCalls++
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	var sb strings.Builder
	for i, c := range f.chunks {
		if f.failAfter >= 0 && i == f.failAfter {
			return sb.String(), f.streamErr
		}
		sb.WriteString(c)
		if err := onChunk(c); err != nil {
			return sb.String(), err
		}
	}
	if f.failAfter >= 0 && f.failAfter >= len(f.chunks) {
		return sb.String(), f.streamErr
	}
	return sb.String(), nil
}

func newGateway(backends ...llm.LLMProvider) *Gateway {
	return New(backends, fallback.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}, time.Second, logger.NewNopLogger())
}

func TestGenerate_RetriesPrimaryBeforeFallingBack(t *testing.T) {
	primary := &fakeProvider{name: "primary", chatErrs: []error{errors.New("502"), nil}, chatReply: "from primary", failAfter: -1}
	secondary := &fakeProvider{name: "secondary", chatReply: "from secondary", failAfter: -1}

	text, err := newGateway(primary, secondary).Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "from primary", text)
	assert.Equal(t, 2, primary.chatCalls)
	assert.Equal(t, 0, secondary.chatCalls)
}

func TestGenerate_FallsThroughToSecondary(t *testing.T) {
	down := errors.New("connection refused")
	primary := &fakeProvider{name: "primary", chatErrs: []error{down, down, down}, failAfter: -1}
	secondary := &fakeProvider{name: "secondary", chatReply: "from secondary", failAfter: -1}

	text, err := newGateway(primary, secondary).Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "from secondary", text)
	assert.Equal(t, 3, primary.chatCalls, "1 attempt + 2 retries")
}

func TestGenerate_AllBackendsFail(t *testing.T) {
	down := errors.New("down")
	primary := &fakeProvider{name: "primary", chatErrs: []error{down, down, down}, failAfter: -1}
	secondary := &fakeProvider{name: "secondary", chatErrs: []error{down, down, down}, failAfter: -1}

	_, err := newGateway(primary, secondary).Generate(context.Background(), "hello")

	require.Error(t, err)
	assert.ErrorIs(t, err, fallback.ErrProviderUnavailable)
	assert.ErrorIs(t, err, down)
}

func TestStream_RelaysChunksInOrder(t *testing.T) {
	primary := &fakeProvider{name: "primary", chunks: []string{"The ", "answer ", "is 42."}, failAfter: -1}

	var got []string
	text, err := newGateway(primary).Stream(context.Background(), nil, func(c string) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "answer ", "is 42."}, got)
	assert.Equal(t, "The answer is 42.", text)
}

func TestStream_MidStreamFailureRelaysOnlyTheMissingSuffix(t *testing.T) {
	primary := &fakeProvider{name: "primary", chunks: []string{"Block A produced ", "never"}, failAfter: 1, streamErr: errors.New("reset by peer")}
	secondary := &fakeProvider{name: "secondary", chatReply: "Block A produced 1200 bopd.", failAfter: -1}

	var got []string
	text, err := newGateway(primary, secondary).Stream(context.Background(), nil, func(c string) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Block A produced 1200 bopd.", text)
	assert.Equal(t, []string{"Block A produced ", "1200 bopd."}, got)
	assert.Equal(t, text, strings.Join(got, ""), "client-assembled text must equal the returned answer")
	assert.Equal(t, 1, primary.streamCalls, "a stream that already produced output is not retried")
	assert.Equal(t, 0, secondary.streamCalls)
	assert.Equal(t, 1, secondary.chatCalls)
}

func TestStream_MidStreamFailureWithDivergentAnswerReportsReplacement(t *testing.T) {
	primary := &fakeProvider{name: "primary", chunks: []string{"partial ", "never"}, failAfter: 1, streamErr: errors.New("reset by peer")}
	secondary := &fakeProvider{name: "secondary", chatReply: "complete answer", failAfter: -1}

	var got []string
	text, err := newGateway(primary, secondary).Stream(context.Background(), nil, func(c string) error {
		got = append(got, c)
		return nil
	})

	assert.ErrorIs(t, err, llm.ErrStreamReplaced)
	assert.Equal(t, "complete answer", text)
	assert.Equal(t, []string{"partial "}, got, "the replacement is not appended to the open stream")
}

func TestStream_MidStreamFailureOnLastBackendUsesItsOneShot(t *testing.T) {
	only := &fakeProvider{name: "only", chunks: []string{"par", "tial"}, failAfter: 1, streamErr: errors.New("eof"), chatReply: "partial"}

	var got []string
	text, err := newGateway(only).Stream(context.Background(), nil, func(c string) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "partial", text)
	assert.Equal(t, []string{"par", "tial"}, got)
}

func TestStream_FailureBeforeOutputStreamsFromNextBackend(t *testing.T) {
	primary := &fakeProvider{name: "primary", chunks: []string{"x"}, failAfter: 0, streamErr: errors.New("503")}
	secondary := &fakeProvider{name: "secondary", chunks: []string{"ok"}, failAfter: -1}

	var got []string
	text, err := newGateway(primary, secondary).Stream(context.Background(), nil, func(c string) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, []string{"ok"}, got)
	assert.Equal(t, 3, primary.streamCalls)
}

func TestStream_HandlerErrorStopsWithoutFallback(t *testing.T) {
	primary := &fakeProvider{name: "primary", chunks: []string{"a", "b"}, failAfter: -1}
	secondary := &fakeProvider{name: "secondary", chatReply: "unused", failAfter: -1}
	gone := errors.New("client gone")

	_, err := newGateway(primary, secondary).Stream(context.Background(), nil, func(c string) error {
		return gone
	})

	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, primary.streamCalls)
	assert.Equal(t, 0, secondary.chatCalls)
}

func TestStream_AllFail(t *testing.T) {
	down := errors.New("down")
	primary := &fakeProvider{name: "primary", failAfter: 0, streamErr: down}

	_, err := newGateway(primary).Stream(context.Background(), nil, func(string) error { return nil })

	assert.ErrorIs(t, err, fallback.ErrProviderUnavailable)
}

func TestGenerate_HangingPrimaryLeavesTimeForSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", hang: true, failAfter: -1}
	secondary := &fakeProvider{name: "secondary", chatReply: "from secondary", failAfter: -1}
	gw := New([]llm.LLMProvider{primary, secondary}, fallback.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}, 200*time.Millisecond, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	text, err := gw.Generate(ctx, "hello")

	require.NoError(t, err)
	assert.Equal(t, "from secondary", text)
	assert.Equal(t, 1, secondary.chatCalls)
}

func TestStream_HangingPrimaryLeavesTimeForSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", hang: true, failAfter: -1}
	secondary := &fakeProvider{name: "secondary", chunks: []string{"ok"}, failAfter: -1}
	gw := New([]llm.LLMProvider{primary, secondary}, fallback.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}, 200*time.Millisecond, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var got []string
	text, err := gw.Stream(ctx, nil, func(c string) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, []string{"ok"}, got)
	assert.Equal(t, 1, secondary.streamCalls)
}

func TestBudgetShare(t *testing.T) {
	assert.Zero(t, budgetShare(context.Background(), 2), "no deadline")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Zero(t, budgetShare(ctx, 1), "last backend keeps the whole budget")

	share := budgetShare(ctx, 2)
	assert.Greater(t, share, 400*time.Millisecond)
	assert.LessOrEqual(t, share, 500*time.Millisecond)
}
