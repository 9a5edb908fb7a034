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
	defaultCohereBaseURL        = "https://api.cohere.com/v1"
	defaultCohereEmbeddingModel = "embed-english-v3.0"
	defaultCohereChatModel      = "command"
)

// CohereClient calls the Cohere REST API.
type CohereClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCohereClient constructs a client with the provided API key.
func NewCohereClient(apiKey, baseURL string) (*CohereClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("cohere api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultCohereBaseURL
	}
	return &CohereClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *CohereClient) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp cohereErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Message != "" {
			return fmt.Errorf("cohere api error: %s", errResp.Message)
		}
		return fmt.Errorf("cohere api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CohereEmbedder embeds text via /embed with a fixed model. Cohere
// distinguishes search_document and search_query input types.
type CohereEmbedder struct {
	client *CohereClient
	model  string
}

// NewCohereEmbedder builds a Cohere-backed embedder.
func NewCohereEmbedder(client *CohereClient, model string) *CohereEmbedder {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultCohereEmbeddingModel
	}
	return &CohereEmbedder{client: client, model: model}
}

// Backend identifies the active embedding backend.
func (e *CohereEmbedder) Backend() string { return BackendCohere }

// EmbedText returns the embedding for one text.
func (e *CohereEmbedder) EmbedText(ctx context.Context, text, inputType string) ([]float32, error) {
	out, err := e.EmbedTexts(ctx, []string{text}, inputType)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedTexts embeds a batch in one call.
func (e *CohereEmbedder) EmbedTexts(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputType = strings.TrimSpace(inputType)
	if inputType == "" {
		inputType = InputTypeDocument
	}
	var resp cohereEmbedResponse
	if err := e.client.doJSON(ctx, "/embed", cohereEmbedRequest{
		Model:     e.model,
		Texts:     texts,
		InputType: inputType,
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere embed count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// CohereGenerator generates text via /chat with a fixed model. The system
// prompt is passed as the Cohere preamble.
type CohereGenerator struct {
	client      *CohereClient
	model       string
	temperature float64
}

// NewCohereGenerator builds a Cohere-backed TextGenerator.
func NewCohereGenerator(client *CohereClient, model string, temperature float64) *CohereGenerator {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultCohereChatModel
	}
	return &CohereGenerator{client: client, model: model, temperature: temperature}
}

// Backend identifies the active generation backend.
func (g *CohereGenerator) Backend() string { return BackendCohere }

// GenerateText implements TextGenerator using the Cohere chat API.
func (g *CohereGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var resp cohereChatResponse
	if err := g.client.doJSON(ctx, "/chat", cohereChatRequest{
		Model:       g.model,
		Message:     userPrompt,
		Preamble:    systemPrompt,
		Temperature: g.temperature,
	}, &resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("empty response from cohere")
	}
	return text, nil
}

// Cohere request/response types.

type cohereEmbedRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type cohereChatRequest struct {
	Model       string  `json:"model"`
	Message     string  `json:"message"`
	Preamble    string  `json:"preamble,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type cohereChatResponse struct {
	Text string `json:"text"`
}

type cohereErrorResponse struct {
	Message string `json:"message"`
}
