package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookrag/internal/util"
	"bookrag/pkg/ai"
	"bookrag/pkg/domain"
	"bookrag/pkg/storage"
	"bookrag/pkg/store"
	"bookrag/pkg/vector"
)

// Config holds runtime collaborators and tuning for the core application.
type Config struct {
	Store        store.Store
	Objects      storage.ObjectStore
	Vectors      vector.Store
	Embedder     ai.Embedder
	Generator    ai.TextGenerator
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// App wires storage, the vector store, and the AI providers into the chat
// and ingestion flows. Provider selection happened before construction and
// is fixed; App itself holds no per-request mutable state.
type App struct {
	store        store.Store
	objects      storage.ObjectStore
	vectors      vector.Store
	embedder     ai.Embedder
	generator    ai.TextGenerator
	chunkSize    int
	chunkOverlap int
	topK         int
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if cfg.Vectors == nil {
		return nil, fmt.Errorf("vector store required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 500
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 50
	}
	topK := cfg.TopK
	if topK <= 0 || topK > maxTopK {
		topK = maxTopK
	}
	return &App{
		store:        cfg.Store,
		objects:      cfg.Objects,
		vectors:      cfg.Vectors,
		embedder:     cfg.Embedder,
		generator:    cfg.Generator,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		topK:         topK,
	}, nil
}

// ChatRequest is one inbound chat exchange.
type ChatRequest struct {
	SessionID    string
	BookID       string
	Query        string
	Mode         domain.ChatMode
	SelectedText string
}

// Chat runs one exchange through session resolution, book resolution,
// retrieval, and generation. Failures map onto the error taxonomy: unknown
// book ids are not-found, blank selected text in selected-text mode is
// invalid input, everything else is internal.
func (a *App) Chat(ctx context.Context, req ChatRequest) (domain.Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeFullBook
	}
	if !mode.Valid() {
		return domain.Answer{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, req.Mode)
	}
	bookID := strings.TrimSpace(req.BookID)
	if bookID == "" {
		return domain.Answer{}, fmt.Errorf("%w: book_id is required", ErrInvalidInput)
	}

	session, err := a.resolveSession(ctx, req.SessionID)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("resolve session: %w", err)
	}

	_, found, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("load book: %w", err)
	}
	if !found {
		return domain.Answer{}, fmt.Errorf("%w: %s", ErrBookNotFound, bookID)
	}

	contexts, err := a.retrieveContext(ctx, mode, bookID, query, req.SelectedText)
	if err != nil {
		return domain.Answer{}, err
	}

	answer, citations := a.generateAnswer(ctx, mode, query, contexts)
	return domain.Answer{
		SessionID:  session.ID,
		ResponseID: util.NewID(),
		Answer:     answer,
		Citations:  citations,
		Mode:       mode,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// resolveSession loads the session when the supplied id is a well-formed
// UUID that exists. A well-formed id that is unknown becomes a new session
// created under that id, so the caller's reference stays valid. Only a
// malformed id is silently replaced with a freshly minted one, recording
// the client-supplied value in metadata so the substitution stays traceable.
func (a *App) resolveSession(ctx context.Context, sessionID string) (domain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID != "" && isWellFormedID(sessionID) {
		session, found, err := a.store.GetSession(sessionID)
		if err != nil {
			return domain.Session{}, err
		}
		if found {
			if err := a.store.TouchSession(sessionID); err != nil {
				return domain.Session{}, err
			}
			return session, nil
		}
		return a.createSession(ctx, sessionID, "", "", nil)
	}

	meta := map[string]string{}
	if sessionID != "" {
		meta["original_session_id"] = sessionID
		util.LoggerFromContext(ctx).Info("replacing malformed session id",
			"original_session_id", sessionID)
	}
	return a.createSession(ctx, "", "", "", meta)
}

func isWellFormedID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CreateSession creates a session explicitly via POST /sessions. The user
// id is kept only when it is a well-formed UUID.
func (a *App) CreateSession(ctx context.Context, userID, bookID string, metadata map[string]string) (domain.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID != "" && !isWellFormedID(userID) {
		userID = ""
	}
	return a.createSession(ctx, "", userID, strings.TrimSpace(bookID), metadata)
}

func (a *App) createSession(_ context.Context, id, userID, bookID string, metadata map[string]string) (domain.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	meta := make(map[string]string, len(metadata)+1)
	for key, value := range metadata {
		meta[key] = value
	}
	if bookID != "" {
		meta["book_id"] = bookID
	}
	now := time.Now().UTC()
	session := domain.Session{
		ID:        id,
		UserID:    userID,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveSession(session); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Health reports per-component status for the health probe.
func (a *App) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"embedding_backend":  a.embedder.Backend(),
		"generation_backend": a.generator.Backend(),
		"vector_transport":   a.vectors.Transport(),
	}
	if err := a.vectors.Ping(ctx); err != nil {
		status["vector_store"] = "unreachable"
	} else {
		status["vector_store"] = "ok"
	}
	if err := a.store.Ping(); err != nil {
		status["database"] = "unreachable"
	} else {
		status["database"] = "ok"
	}
	return status
}

// Ready reports whether the vector store is reachable.
func (a *App) Ready(ctx context.Context) error {
	return a.vectors.Ping(ctx)
}
