package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultOpenAIChatModel      = "gpt-3.5-turbo"
)

// OpenAIClient calls the OpenAI REST API (or any compatible endpoint).
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClient constructs a client with the provided API key.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (c *OpenAIClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// Required by the assistants endpoints, harmless elsewhere.
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("openai api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("openai api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OpenAIEmbedder embeds text via /embeddings with a fixed model.
type OpenAIEmbedder struct {
	client *OpenAIClient
	model  string
}

// NewOpenAIEmbedder builds an OpenAI-backed embedder.
func NewOpenAIEmbedder(client *OpenAIClient, model string) *OpenAIEmbedder {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}
	return &OpenAIEmbedder{client: client, model: model}
}

// Backend identifies the active embedding backend.
func (e *OpenAIEmbedder) Backend() string { return BackendOpenAI }

// EmbedText returns the embedding for one text. OpenAI embedding models do
// not take an input type hint.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text, inputType string) ([]float32, error) {
	out, err := e.EmbedTexts(ctx, []string{text}, inputType)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedTexts embeds a batch in one call.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string, _ string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp oaiEmbedResponse
	if err := e.client.doJSON(ctx, http.MethodPost, "/embeddings", oaiEmbedRequest{
		Model: e.model,
		Input: texts,
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("openai embed index out of range: %d", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// OpenAIGenerator generates text via /chat/completions with a fixed model.
type OpenAIGenerator struct {
	client      *OpenAIClient
	model       string
	temperature float64
}

// NewOpenAIGenerator builds an OpenAI-backed TextGenerator.
func NewOpenAIGenerator(client *OpenAIClient, model string, temperature float64) *OpenAIGenerator {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOpenAIChatModel
	}
	return &OpenAIGenerator{client: client, model: model, temperature: temperature}
}

// Backend identifies the active generation backend.
func (g *OpenAIGenerator) Backend() string { return BackendOpenAI }

// GenerateText implements TextGenerator using the chat completions API.
func (g *OpenAIGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: userPrompt})

	var resp oaiChatResponse
	if err := g.client.doJSON(ctx, http.MethodPost, "/chat/completions", oaiChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	}, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from openai")
	}
	return text, nil
}

// OpenAI request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type oaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
