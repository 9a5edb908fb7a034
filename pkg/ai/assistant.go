package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	assistantName        = "Book RAG Assistant"
	assistantRunTimeout  = 60 * time.Second
	assistantPollEvery   = time.Second
	assistantDescription = "Answers questions strictly from provided book context with citations."
)

// AssistantGenerator generates text through the OpenAI assistants API. A run
// is asynchronous server-side, so GenerateText polls it on a fixed interval
// with a bounded timeout and actively cancels the run when the timeout hits.
type AssistantGenerator struct {
	client      *OpenAIClient
	assistantID string
	model       string
}

// NewAssistantGenerator finds or creates the named assistant and binds the
// generator to it.
func NewAssistantGenerator(client *OpenAIClient, model string, temperature float64) (*AssistantGenerator, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOpenAIChatModel
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var listed struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := client.doJSON(ctx, http.MethodGet, "/assistants?limit=20", nil, &listed); err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	for _, a := range listed.Data {
		if a.Name == assistantName {
			return &AssistantGenerator{client: client, assistantID: a.ID, model: model}, nil
		}
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := client.doJSON(ctx, http.MethodPost, "/assistants", map[string]any{
		"name":        assistantName,
		"description": assistantDescription,
		"instructions": "You answer questions based strictly on the provided context from a book. " +
			"If the information is not in the context, say so directly. Be concise and cite the passages you use.",
		"model":       model,
		"temperature": temperature,
	}, &created); err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return &AssistantGenerator{client: client, assistantID: created.ID, model: model}, nil
}

// Backend identifies the active generation backend.
func (g *AssistantGenerator) Backend() string { return BackendOpenAIAssistant }

// GenerateText creates a thread with the user prompt, starts a run carrying
// the system prompt as run instructions, and waits for completion.
func (g *AssistantGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var thread struct {
		ID string `json:"id"`
	}
	if err := g.client.doJSON(ctx, http.MethodPost, "/threads", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": userPrompt}},
	}, &thread); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	var run assistantRun
	if err := g.client.doJSON(ctx, http.MethodPost, "/threads/"+thread.ID+"/runs", map[string]any{
		"assistant_id": g.assistantID,
		"instructions": systemPrompt,
	}, &run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	run, err := g.waitForRun(ctx, thread.ID, run.ID)
	if err != nil {
		return "", err
	}
	if run.Status != "completed" {
		return "", fmt.Errorf("assistant run ended with status %q", run.Status)
	}
	return g.latestAssistantMessage(ctx, thread.ID)
}

// waitForRun polls run state once per second until it reaches a terminal
// status or the bounded timeout expires. On timeout the run is cancelled
// server-side before returning.
func (g *AssistantGenerator) waitForRun(ctx context.Context, threadID, runID string) (assistantRun, error) {
	deadline := time.Now().Add(assistantRunTimeout)
	ticker := time.NewTicker(assistantPollEvery)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		var run assistantRun
		if err := g.client.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
			return assistantRun{}, fmt.Errorf("poll run: %w", err)
		}
		switch run.Status {
		case "completed", "failed", "cancelled", "expired":
			return run, nil
		}
		select {
		case <-ctx.Done():
			return assistantRun{}, ctx.Err()
		case <-ticker.C:
		}
	}

	_ = g.client.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/runs/"+runID+"/cancel", map[string]any{}, nil)
	return assistantRun{}, fmt.Errorf("assistant run timed out after %s", assistantRunTimeout)
}

func (g *AssistantGenerator) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var messages struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := g.client.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/messages?order=desc", nil, &messages); err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range messages.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, block := range msg.Content {
			if block.Type == "text" && strings.TrimSpace(block.Text.Value) != "" {
				return block.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("assistant produced no text response")
}

type assistantRun struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
