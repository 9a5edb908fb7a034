package vector

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// New builds a Store for the configured Qdrant endpoint. When an API key is
// present the gRPC transport is used (cloud instances require it and expose
// the binary port); otherwise the plain HTTP transport talks to the REST
// port directly. The selection happens once and is fixed for the store's
// lifetime.
func New(cfg Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	var store Store
	var err error
	if strings.TrimSpace(cfg.APIKey) != "" {
		store, err = newGRPCStore(cfg)
	} else {
		store, err = newHTTPStore(cfg)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("vector store configured",
		"transport", store.Transport(),
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return store, nil
}

func validateConfig(cfg Config) error {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return fmt.Errorf("vector store url required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid vector store url %q: expected absolute URL like http://localhost:6333", raw)
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return fmt.Errorf("vector store collection required")
	}
	if cfg.VectorDim <= 0 {
		return fmt.Errorf("vector store dimension must be positive, got %d", cfg.VectorDim)
	}
	return nil
}

func validateVectorDim(op string, dim int, values []float32) error {
	if len(values) == 0 {
		return opErr(op, ErrCodeValidation, "vector required", nil)
	}
	if dim > 0 && len(values) != dim {
		return opErr(op, ErrCodeValidation,
			fmt.Sprintf("vector dimension mismatch: expected=%d got=%d", dim, len(values)), nil)
	}
	return nil
}
