package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TextGenerator generates text from a system prompt and a user prompt.
// All generation backends (Ollama, OpenAI, OpenAI assistants, Cohere,
// fallback) implement this interface.
type TextGenerator interface {
	// Backend reports which backend variant was selected at construction.
	Backend() string
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GeneratorConfig configures the generation provider chain. Each backend has
// its own independently configurable model name.
type GeneratorConfig struct {
	// Provider forces a specific variant ("openai_assistant" is only
	// reachable this way). Empty means walk the priority chain.
	Provider      string
	OllamaBaseURL string
	OllamaModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	CohereAPIKey  string
	CohereModel   string
	Temperature   float64
}

// ResolveGenerator picks a generation backend once, in priority order:
// local Ollama (configured and reachable), then OpenAI, then Cohere, then
// the fallback generator. The chain never fails; with no backend available
// the service answers in a clearly labeled degraded mode. The choice is
// fixed for the returned generator's lifetime.
func ResolveGenerator(cfg GeneratorConfig) TextGenerator {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == BackendOpenAIAssistant {
		client, err := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err == nil {
			gen, aerr := NewAssistantGenerator(client, cfg.OpenAIModel, cfg.Temperature)
			if aerr == nil {
				slog.Info("generation backend selected", "backend", BackendOpenAIAssistant, "model", cfg.OpenAIModel)
				return gen
			}
			slog.Warn("openai assistant backend init failed", "err", aerr)
		} else {
			slog.Warn("openai assistant backend requires an api key", "err", err)
		}
	}
	if strings.TrimSpace(cfg.OllamaBaseURL) != "" {
		client := NewOllamaClient(cfg.OllamaBaseURL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			slog.Info("generation backend selected", "backend", BackendOllama, "model", cfg.OllamaModel)
			return NewOllamaGenerator(client, cfg.OllamaModel)
		}
		slog.Warn("ollama generation backend unavailable", "err", err)
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client, err := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err == nil {
			slog.Info("generation backend selected", "backend", BackendOpenAI, "model", cfg.OpenAIModel)
			return NewOpenAIGenerator(client, cfg.OpenAIModel, cfg.Temperature)
		}
		slog.Warn("openai generation backend init failed", "err", err)
	}
	if strings.TrimSpace(cfg.CohereAPIKey) != "" {
		client, err := NewCohereClient(cfg.CohereAPIKey, "")
		if err == nil {
			slog.Info("generation backend selected", "backend", BackendCohere, "model", cfg.CohereModel)
			return NewCohereGenerator(client, cfg.CohereModel, cfg.Temperature)
		}
		slog.Warn("cohere generation backend init failed", "err", err)
	}
	slog.Warn("no generation backend available, running in fallback mode", "backend", BackendFallback)
	return &FallbackGenerator{}
}

// FallbackGenerator is the degraded-mode generation backend used when no
// real backend could be initialized. Callers detect it via Backend() and
// build a labeled placeholder answer instead of a model call; GenerateText
// itself also returns a labeled placeholder so the variant is safe to call.
type FallbackGenerator struct{}

// Backend identifies the degraded generation backend.
func (g *FallbackGenerator) Backend() string { return BackendFallback }

// GenerateText returns a labeled placeholder echoing the prompt.
func (g *FallbackGenerator) GenerateText(_ context.Context, _, userPrompt string) (string, error) {
	return fmt.Sprintf(
		"The system is currently running in fallback mode because no generation backend is available. "+
			"Configure an API key or a local model endpoint. Prompt received: %q", userPrompt), nil
}
