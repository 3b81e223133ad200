package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zara-assistant-be/internal/pkg/logger"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero left", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"zero right", []float32{1, 2, 3}, []float32{0, 0, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	vectors := [][]float32{
		{0.3, -1.2, 4.5, 0},
		{2, 2, 2, 2},
		{0, 0, 0, 0},
		{-0.01, 9, 0.5, 3},
	}
	for i, a := range vectors {
		for j, b := range vectors {
			if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
				t.Errorf("sim(v%d,v%d) != sim(v%d,v%d)", i, j, j, i)
			}
		}
	}
}

func TestNormalizeAndIsZero(t *testing.T) {
	n := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, n[0], 1e-6)
	assert.InDelta(t, 0.8, n[1], 1e-6)

	assert.True(t, IsZero(make([]float32, 8)))
	assert.True(t, IsZero(nil))
	assert.False(t, IsZero(n))
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

type stubProvider struct {
	name  string
	vec   []float32
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func TestChain_FallsBackToSecondary(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", vec: []float32{0.1, 0.2}}

	chain := NewChain([]EmbeddingProvider{primary, secondary}, 2, logger.NewNopLogger())
	v, err := chain.Embed(context.Background(), "oil production")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)
	assert.Equal(t, 1, primary.calls)
}

func TestChain_AllFailReturnsZeroVector(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", err: errors.New("also down")}

	chain := NewChain([]EmbeddingProvider{primary, secondary}, 4, logger.NewNopLogger())
	v, err := chain.Embed(context.Background(), "anything")

	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.True(t, IsZero(v))
}

func TestChain_UsesCache(t *testing.T) {
	p := &stubProvider{name: "primary", vec: []float32{1, 0}}
	cache := NewTieredCache(nil, time.Minute, time.Hour)

	chain := NewChain([]EmbeddingProvider{p}, 2, logger.NewNopLogger(), WithCache(cache))
	_, err := chain.Embed(context.Background(), "same text")
	require.NoError(t, err)
	_, err = chain.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("m", "hello"), CacheKey("m", "hello"))
	assert.NotEqual(t, CacheKey("m", "hello"), CacheKey("m", "hello!"))
	assert.NotEqual(t, CacheKey("a", "hello"), CacheKey("b", "hello"))
}

func TestOllamaProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		fmt.Fprint(w, `{"embedding":[3.0,4.0]}`)
	}))
	defer server.Close()

	v, err := NewOllamaProvider(server.URL, "mxbai-embed-large").Embed(context.Background(), "hi")

	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
}

func TestOllamaProvider_EmbedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewOllamaProvider(server.URL, "").Embed(context.Background(), "hi")
	assert.Error(t, err)
}
