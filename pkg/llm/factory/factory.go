package factory

import (
	"fmt"

	"zara-assistant-be/internal/config"
	"zara-assistant-be/pkg/embedding"
	embeddingopenai "zara-assistant-be/pkg/embedding/openai"
	"zara-assistant-be/pkg/llm"
	"zara-assistant-be/pkg/llm/ollama"
	"zara-assistant-be/pkg/llm/openai"
)

func NewLLMProvider(backend config.BackendConfig) (llm.LLMProvider, error) {
	switch backend.Type {
	case "ollama":
		baseURL := backend.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, backend.Model), nil
	case "openai", "litellm":
		return openai.NewOpenAIProvider(backend.APIKey, backend.BaseURL, backend.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", backend.Type)
	}
}

// NewLLMChain builds the ordered backend list, skipping disabled entries.
func NewLLMChain(backends ...config.BackendConfig) ([]llm.LLMProvider, error) {
	var chain []llm.LLMProvider
	for _, b := range backends {
		if !b.Enabled() {
			continue
		}
		p, err := NewLLMProvider(b)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no LLM backend configured")
	}
	return chain, nil
}

func NewEmbeddingProvider(backend config.BackendConfig) (embedding.EmbeddingProvider, error) {
	switch backend.Type {
	case "ollama":
		return embedding.NewOllamaProvider(backend.BaseURL, backend.Model), nil
	case "openai", "litellm":
		return embeddingopenai.NewOpenAIProvider(backend.APIKey, backend.BaseURL, backend.Model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", backend.Type)
	}
}

// NewEmbeddingChain builds the ordered embedding backends. An empty chain is
// allowed; the embedding gateway then always reports no signal.
func NewEmbeddingChain(backends ...config.BackendConfig) ([]embedding.EmbeddingProvider, error) {
	var chain []embedding.EmbeddingProvider
	for _, b := range backends {
		if !b.Enabled() {
			continue
		}
		p, err := NewEmbeddingProvider(b)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}
