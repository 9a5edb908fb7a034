// Package vector provides a Qdrant-backed nearest-neighbor store keyed by a
// named collection. Two transports are supported behind one interface: a
// gRPC client used when an API key is configured (managed/cloud instances),
// and a plain HTTP client for local instances. Callers never see which
// transport is active.
package vector

import "context"

// Point is one stored vector with its payload.
type Point struct {
	ID      string
	Values  []float32
	Payload map[string]any
}

// Match is one similarity search hit.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the vector store client surface. Search results are ordered by
// descending similarity score; equal scores are tie-broken by id so the
// order is stable.
type Store interface {
	// Transport reports the active transport ("grpc" or "http").
	Transport() string
	// EnsureCollection creates the configured collection (cosine distance)
	// when it does not exist yet.
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	// Search runs a similarity query. filter holds equality conditions
	// over payload fields; nil means unfiltered.
	Search(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]Match, error)
	Get(ctx context.Context, ids []string) ([]Point, error)
	Delete(ctx context.Context, ids []string) error
	// Ping verifies the store is reachable. Used by readiness probes.
	Ping(ctx context.Context) error
}

// Config holds connection settings for either transport.
type Config struct {
	// URL is the REST endpoint, e.g. http://localhost:6333. The gRPC
	// transport derives host and TLS mode from it.
	URL        string
	APIKey     string
	Collection string
	// VectorDim is the collection dimension; vectors are validated
	// against it before leaving the process.
	VectorDim int
}

const (
	transportGRPC = "grpc"
	transportHTTP = "http"

	defaultSearchLimit = 10
)
