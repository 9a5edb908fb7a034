package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testConfig(url string) Config {
	return Config{URL: url, Collection: "book_chunks", VectorDim: 4}
}

func TestNewSelectsTransportByCredential(t *testing.T) {
	store, err := New(testConfig("http://127.0.0.1:6333"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := store.Transport(); got != transportHTTP {
		t.Fatalf("transport = %q, want %q", got, transportHTTP)
	}

	cfg := testConfig("https://cloud.example.com")
	cfg.APIKey = "secret"
	store, err = New(cfg)
	if err != nil {
		t.Fatalf("New with api key: %v", err)
	}
	if got := store.Transport(); got != transportGRPC {
		t.Fatalf("transport = %q, want %q", got, transportGRPC)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{Collection: "c", VectorDim: 4}},
		{"relative url", Config{URL: "localhost:6333/path", Collection: "c", VectorDim: 4}},
		{"missing collection", Config{URL: "http://127.0.0.1:6333", VectorDim: 4}},
		{"zero dim", Config{URL: "http://127.0.0.1:6333", Collection: "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestHTTPSearchOrdersAndFilters(t *testing.T) {
	var gotFilter map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/book_chunks/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotFilter, _ = req["filter"].(map[string]any)
		writeEnvelope(w, []map[string]any{
			{"id": "b", "score": 0.5, "payload": map[string]any{"content": "second"}},
			{"id": "c", "score": 0.9, "payload": map[string]any{"content": "first"}},
			{"id": "a", "score": 0.5, "payload": map[string]any{"content": "tied"}},
		})
	}))
	defer srv.Close()

	store, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	matches, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 5,
		map[string]string{"book_id": "bk_1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(matches))
	}
	wantOrder := []string{"c", "a", "b"}
	for i, want := range wantOrder {
		if matches[i].ID != want {
			t.Errorf("matches[%d].ID = %q, want %q", i, matches[i].ID, want)
		}
	}
	if gotFilter == nil {
		t.Fatal("expected must filter in request")
	}
	must, _ := gotFilter["must"].([]any)
	if len(must) != 1 {
		t.Fatalf("must conditions = %d, want 1", len(must))
	}
}

func TestHTTPSearchRejectsWrongDimension(t *testing.T) {
	store, err := New(testConfig("http://127.0.0.1:6333"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = store.Search(context.Background(), []float32{1, 2}, 5, nil)
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != ErrCodeValidation {
		t.Fatalf("err = %v, want validation OperationError", err)
	}
}

func TestHTTPUpsertSendsWaitAndPoints(t *testing.T) {
	var gotQuery string
	var gotPoints []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		var req struct {
			Points []map[string]any `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotPoints = req.Points
		writeEnvelope(w, map[string]any{"status": "completed"})
	}))
	defer srv.Close()

	store, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = store.Upsert(context.Background(), []Point{
		{ID: "11111111-1111-5111-8111-111111111111", Values: []float32{1, 2, 3, 4},
			Payload: map[string]any{"book_id": "bk_1", "chunk_index": 0}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if gotQuery != "wait=true" {
		t.Errorf("query = %q, want wait=true", gotQuery)
	}
	if len(gotPoints) != 1 {
		t.Fatalf("points = %d, want 1", len(gotPoints))
	}
	if gotPoints[0]["id"] != "11111111-1111-5111-8111-111111111111" {
		t.Errorf("point id = %v", gotPoints[0]["id"])
	}
}

func TestHTTPUpsertRejectsEmptyID(t *testing.T) {
	store, err := New(testConfig("http://127.0.0.1:6333"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = store.Upsert(context.Background(), []Point{{ID: "  ", Values: []float32{1, 2, 3, 4}}})
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != ErrCodeValidation {
		t.Fatalf("err = %v, want validation OperationError", err)
	}
}

func TestHTTPEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var createdWith map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
		case http.MethodPut:
			var req struct {
				Vectors map[string]any `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			createdWith = req.Vectors
			writeEnvelope(w, true)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	store, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if createdWith == nil {
		t.Fatal("expected create collection call")
	}
	if createdWith["size"] != float64(4) || createdWith["distance"] != "Cosine" {
		t.Errorf("vectors config = %v", createdWith)
	}
}

func TestHTTPEnsureCollectionDetectsDimMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 768, "distance": "Cosine"},
				},
			},
		})
	}))
	defer srv.Close()

	store, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = store.EnsureCollection(context.Background())
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != ErrCodeValidation {
		t.Fatalf("err = %v, want validation OperationError", err)
	}
}

func TestHTTPErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":{"error":"boom"}}`))
	}))
	defer srv.Close()

	store, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = store.Delete(context.Background(), []string{"a"})
	var operr *OperationError
	if !errors.As(err, &operr) {
		t.Fatalf("err = %v, want OperationError", err)
	}
	if operr.Code != ErrCodeQuery || operr.StatusCode != http.StatusInternalServerError {
		t.Errorf("code=%s status=%d", operr.Code, operr.StatusCode)
	}
}

func TestHTTPDeleteAndGetNoopOnEmptyInput(t *testing.T) {
	store, err := New(testConfig("http://127.0.0.1:6333"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Delete(context.Background(), nil); err != nil {
		t.Fatalf("Delete(nil): %v", err)
	}
	points, err := store.Get(context.Background(), nil)
	if err != nil || points != nil {
		t.Fatalf("Get(nil) = %v, %v", points, err)
	}
}

func writeEnvelope(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}
