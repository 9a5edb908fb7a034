package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookrag/internal/app"
	"bookrag/pkg/domain"
	"bookrag/pkg/storage"
	"bookrag/pkg/store"
	"bookrag/pkg/vector"
)

type stubEmbedder struct{}

func (stubEmbedder) Backend() string { return "stub" }

func (stubEmbedder) EmbedText(context.Context, string, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

type stubGenerator struct{}

func (stubGenerator) Backend() string { return "stub" }

func (stubGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	return "Paris is the capital of France.", nil
}

type stubVectorStore struct {
	matches []vector.Match
	pingErr error
}

func (s *stubVectorStore) Transport() string { return "stub" }

func (s *stubVectorStore) EnsureCollection(context.Context) error { return nil }

func (s *stubVectorStore) Upsert(context.Context, []vector.Point) error { return nil }

func (s *stubVectorStore) Search(context.Context, []float32, int, map[string]string) ([]vector.Match, error) {
	return s.matches, nil
}

func (s *stubVectorStore) Get(context.Context, []string) ([]vector.Point, error) { return nil, nil }

func (s *stubVectorStore) Delete(context.Context, []string) error { return nil }

func (s *stubVectorStore) Ping(context.Context) error { return s.pingErr }

func newTestServer(t *testing.T, vectors *stubVectorStore) (*Server, *store.MemoryStore) {
	t.Helper()
	dataStore := store.NewMemoryStore()
	core, err := app.New(app.Config{
		Store:     dataStore,
		Objects:   storage.NewMemoryStore(),
		Vectors:   vectors,
		Embedder:  stubEmbedder{},
		Generator: stubGenerator{},
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return New(Config{App: core}), dataStore
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestAndChatRoundTrip(t *testing.T) {
	vectors := &stubVectorStore{}
	srv, _ := newTestServer(t, vectors)
	handler := srv.Router()

	words := make([]string, 1000)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	rec := postJSON(t, handler, "/books/ingest", map[string]any{
		"title":   "Geography",
		"author":  "Author",
		"content": strings.Join(words, " "),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d body=%s", rec.Code, rec.Body.String())
	}
	var ingested struct {
		BookID string `json:"book_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ingested); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	if ingested.Status != "success" || ingested.BookID == "" {
		t.Fatalf("ingest response = %+v", ingested)
	}

	vectors.matches = []vector.Match{
		{ID: "a", Score: 0.9, Payload: map[string]any{
			"content": "Paris is the capital of France. More text.",
			"book_id": ingested.BookID,
		}},
	}
	rec = postJSON(t, handler, "/chat", map[string]any{
		"book_id": ingested.BookID,
		"query":   "what is the capital of France",
		"mode":    "full_book",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d body=%s", rec.Code, rec.Body.String())
	}
	var answer domain.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if answer.Answer != "Paris is the capital of France." {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.Citations) != 1 || !answer.Citations[0].Validated {
		t.Errorf("citations = %+v", answer.Citations)
	}
	if answer.SessionID == "" || answer.ResponseID == "" {
		t.Errorf("envelope = %+v", answer)
	}
}

func TestChatErrorMapping(t *testing.T) {
	srv, dataStore := newTestServer(t, &stubVectorStore{})
	handler := srv.Router()
	if err := dataStore.SaveBook(domain.Book{ID: "bk_1", Title: "T", Author: "A"}); err != nil {
		t.Fatalf("seed book: %v", err)
	}

	cases := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			"unknown book",
			map[string]any{"book_id": "missing", "query": "q", "mode": "full_book"},
			http.StatusNotFound,
		},
		{
			"blank selected text",
			map[string]any{"book_id": "bk_1", "query": "q", "mode": "selected_text_only", "selected_text": " "},
			http.StatusBadRequest,
		},
		{
			"missing query",
			map[string]any{"book_id": "bk_1", "mode": "full_book"},
			http.StatusBadRequest,
		},
		{
			"unknown mode",
			map[string]any{"book_id": "bk_1", "query": "q", "mode": "telepathy"},
			http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/chat", tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			var payload map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if payload["error"] == "" {
				t.Error("expected structured error message")
			}
		})
	}
}

func TestChatInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, &stubVectorStore{})
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubVectorStore{})
	handler := srv.Router()

	rec := postJSON(t, handler, "/sessions", map[string]any{"book_id": "b1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["session_id"] == "" || payload["status"] != "active" {
		t.Errorf("payload = %v", payload)
	}
	if _, present := payload["user_id"]; present {
		t.Errorf("user_id should be omitted when absent, payload = %v", payload)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &stubVectorStore{})
	handler := srv.Router()
	for _, path := range []string{"/books/ingest", "/chat", "/sessions"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s GET status = %d, want 405", path, rec.Code)
		}
	}
}

func TestProbes(t *testing.T) {
	vectors := &stubVectorStore{}
	srv, _ := newTestServer(t, vectors)
	handler := srv.Router()

	for _, path := range []string{"/health", "/ready", "/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}

	vectors.pingErr = fmt.Errorf("qdrant down")
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready degraded status = %d, want 503", rec.Code)
	}
	// liveness stays green while dependencies are down
	req = httptest.NewRequest(http.MethodGet, "/live", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/live status = %d, want 200", rec.Code)
	}
}
