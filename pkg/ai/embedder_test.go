package ai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestDummyEmbedderDeterministic(t *testing.T) {
	e := NewDummyEmbedder(64)
	if e.Backend() != BackendDummy {
		t.Fatalf("Backend() = %q, want %q", e.Backend(), BackendDummy)
	}

	a, err := e.EmbedText(context.Background(), "the quick brown fox", InputTypeDocument)
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	b, err := e.EmbedText(context.Background(), "the quick brown fox", InputTypeQuery)
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("dimension = %d, want 64", len(a))
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same text produced different vectors")
	}

	c, err := e.EmbedText(context.Background(), "a different text", InputTypeDocument)
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if reflect.DeepEqual(a, c) {
		t.Fatal("different texts produced identical vectors")
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Fatalf("vector norm = %f, want 1", math.Sqrt(norm))
	}
}

func TestDummyEmbedderDefaultsDimension(t *testing.T) {
	e := NewDummyEmbedder(0)
	out, err := e.EmbedText(context.Background(), "x", InputTypeDocument)
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if len(out) != defaultDummyDimensions {
		t.Fatalf("dimension = %d, want %d", len(out), defaultDummyDimensions)
	}
}

func TestResolveEmbedderFallsBackToDummy(t *testing.T) {
	// No backend configured at all.
	e := ResolveEmbedder(EmbedderConfig{Dimensions: 16})
	if e.Backend() != BackendDummy {
		t.Fatalf("Backend() = %q, want %q", e.Backend(), BackendDummy)
	}

	// Ollama configured but unreachable, no API keys: still dummy.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()
	e = ResolveEmbedder(EmbedderConfig{OllamaBaseURL: srv.URL, Dimensions: 16})
	if e.Backend() != BackendDummy {
		t.Fatalf("Backend() = %q, want %q", e.Backend(), BackendDummy)
	}
}

func TestResolveEmbedderPrefersReachableOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			_ = json.NewEncoder(w).Encode(map[string]string{"version": "0.5.0"})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := ResolveEmbedder(EmbedderConfig{
		OllamaBaseURL: srv.URL,
		OllamaModel:   "nomic-embed-text",
		OpenAIAPIKey:  "sk-unused",
		Dimensions:    16,
	})
	if e.Backend() != BackendOllama {
		t.Fatalf("Backend() = %q, want %q", e.Backend(), BackendOllama)
	}
}

func TestResolveEmbedderSkipsToCloudKey(t *testing.T) {
	e := ResolveEmbedder(EmbedderConfig{OpenAIAPIKey: "sk-test", Dimensions: 16})
	if e.Backend() != BackendOpenAI {
		t.Fatalf("Backend() = %q, want %q", e.Backend(), BackendOpenAI)
	}

	e = ResolveEmbedder(EmbedderConfig{CohereAPIKey: "co-test", Dimensions: 16})
	if e.Backend() != BackendCohere {
		t.Fatalf("Backend() = %q, want %q", e.Backend(), BackendCohere)
	}
}

func TestOllamaEmbedderBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q, want nomic-embed-text", req.Model)
		}
		inputs, ok := req.Input.([]any)
		if !ok {
			t.Errorf("input type = %T, want slice", req.Input)
		}
		resp := ollamaEmbedResponse{}
		for range inputs {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(NewOllamaClient(srv.URL), "nomic-embed-text", 2)
	out, err := e.EmbedTexts(context.Background(), []string{"one", "two"}, InputTypeDocument)
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(out) != 2 || len(out[0]) != 2 {
		t.Fatalf("unexpected shape: %v", out)
	}
}
