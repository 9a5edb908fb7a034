package ai

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Backend names reported by embedders and generators for observability.
const (
	BackendOllama          = "ollama"
	BackendOpenAI          = "openai"
	BackendOpenAIAssistant = "openai_assistant"
	BackendCohere          = "cohere"
	BackendDummy           = "dummy"
	BackendFallback        = "fallback"
)

// Input type hints passed to embedding backends that distinguish documents
// from queries.
const (
	InputTypeDocument = "search_document"
	InputTypeQuery    = "search_query"
)

// Embedder produces a fixed-dimension vector for a text.
type Embedder interface {
	// Backend reports which backend variant was selected at construction.
	Backend() string
	EmbedText(ctx context.Context, text, inputType string) ([]float32, error)
}

// BatchEmbedder optionally supports embedding multiple texts at once.
type BatchEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string, inputType string) ([][]float32, error)
}

// EmbedderConfig configures the embedding provider chain.
type EmbedderConfig struct {
	OllamaBaseURL string
	OllamaModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	CohereAPIKey  string
	CohereModel   string
	// Dimensions is the canonical embedding dimension; required by the
	// Ollama and dummy variants.
	Dimensions int
}

// ResolveEmbedder picks an embedding backend once, in priority order:
// local Ollama (configured and reachable), then OpenAI, then Cohere, then
// the deterministic dummy embedder. The chain never fails: with no backend
// configured the service runs in dummy mode, which is logged as degraded.
// The choice is fixed for the returned embedder's lifetime.
func ResolveEmbedder(cfg EmbedderConfig) Embedder {
	if strings.TrimSpace(cfg.OllamaBaseURL) != "" {
		client := NewOllamaClient(cfg.OllamaBaseURL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			slog.Info("embedding backend selected", "backend", BackendOllama, "model", cfg.OllamaModel)
			return NewOllamaEmbedder(client, cfg.OllamaModel, cfg.Dimensions)
		}
		slog.Warn("ollama embedding backend unavailable", "err", err)
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client, err := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err == nil {
			slog.Info("embedding backend selected", "backend", BackendOpenAI, "model", cfg.OpenAIModel)
			return NewOpenAIEmbedder(client, cfg.OpenAIModel)
		}
		slog.Warn("openai embedding backend init failed", "err", err)
	}
	if strings.TrimSpace(cfg.CohereAPIKey) != "" {
		client, err := NewCohereClient(cfg.CohereAPIKey, "")
		if err == nil {
			slog.Info("embedding backend selected", "backend", BackendCohere, "model", cfg.CohereModel)
			return NewCohereEmbedder(client, cfg.CohereModel)
		}
		slog.Warn("cohere embedding backend init failed", "err", err)
	}
	slog.Warn("no embedding backend available, running in dummy mode", "backend", BackendDummy, "dimensions", cfg.Dimensions)
	return NewDummyEmbedder(cfg.Dimensions)
}

// EmbedAll embeds texts with one batch call when the embedder supports it,
// falling back to per-text calls otherwise.
func EmbedAll(ctx context.Context, embedder Embedder, texts []string, inputType string) ([][]float32, error) {
	if batch, ok := embedder.(BatchEmbedder); ok && len(texts) > 1 {
		return batch.EmbedTexts(ctx, texts, inputType)
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		embedding, err := embedder.EmbedText(ctx, text, inputType)
		if err != nil {
			return nil, err
		}
		out = append(out, embedding)
	}
	return out, nil
}
