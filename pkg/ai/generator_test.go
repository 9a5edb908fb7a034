package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResolveGeneratorFallsBack(t *testing.T) {
	g := ResolveGenerator(GeneratorConfig{})
	if g.Backend() != BackendFallback {
		t.Fatalf("Backend() = %q, want %q", g.Backend(), BackendFallback)
	}
	answer, err := g.GenerateText(context.Background(), "system", "what is chapter one about?")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if !strings.Contains(answer, "fallback mode") {
		t.Fatalf("fallback answer not labeled: %q", answer)
	}
	if !strings.Contains(answer, "what is chapter one about?") {
		t.Fatalf("fallback answer does not echo the prompt: %q", answer)
	}
}

func TestResolveGeneratorPriority(t *testing.T) {
	g := ResolveGenerator(GeneratorConfig{OpenAIAPIKey: "sk-test", CohereAPIKey: "co-test"})
	if g.Backend() != BackendOpenAI {
		t.Fatalf("Backend() = %q, want %q", g.Backend(), BackendOpenAI)
	}

	g = ResolveGenerator(GeneratorConfig{CohereAPIKey: "co-test"})
	if g.Backend() != BackendCohere {
		t.Fatalf("Backend() = %q, want %q", g.Backend(), BackendCohere)
	}
}

func TestOllamaGeneratorChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			t.Error("stream = true, want false")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: "It is about whales."},
		})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(NewOllamaClient(srv.URL), "llama3")
	out, err := g.GenerateText(context.Background(), "You answer from the book.", "What is it about?")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "It is about whales." {
		t.Fatalf("answer = %q", out)
	}
}

func TestOpenAIGeneratorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "requests"},
		})
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("sk-test", srv.URL)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	g := NewOpenAIGenerator(client, "gpt-4o-mini", 0.2)
	if _, err := g.GenerateText(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected error from 429 response")
	} else if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Fatalf("error does not surface api message: %v", err)
	}
}

func TestCohereEmbedderSendsInputType(t *testing.T) {
	var got cohereEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(cohereEmbedResponse{
			Embeddings: [][]float32{{0.3, 0.4}},
		})
	}))
	defer srv.Close()

	client, err := NewCohereClient("co-test", srv.URL)
	if err != nil {
		t.Fatalf("NewCohereClient: %v", err)
	}
	e := NewCohereEmbedder(client, "embed-english-v3.0")
	if _, err := e.EmbedText(context.Background(), "find the whale", InputTypeQuery); err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if got.InputType != InputTypeQuery {
		t.Fatalf("input_type = %q, want %q", got.InputType, InputTypeQuery)
	}
}

func TestEmbedAllUsesBatchInterface(t *testing.T) {
	e := NewDummyEmbedder(8)
	texts := []string{"alpha", "beta", "gamma"}
	out, err := EmbedAll(context.Background(), e, texts, InputTypeDocument)
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if len(out) != len(texts) {
		t.Fatalf("got %d embeddings, want %d", len(out), len(texts))
	}
	for i, v := range out {
		single, _ := e.EmbedText(context.Background(), texts[i], InputTypeDocument)
		if len(v) != len(single) {
			t.Fatalf("batch and single embeddings differ at %d", i)
		}
	}
}
