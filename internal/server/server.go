package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"bookrag/internal/app"
	"bookrag/internal/ratelimit"
	"bookrag/internal/util"
	"bookrag/pkg/domain"
)

const maxBodyBytes = 10 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
}

// Server exposes the HTTP endpoints.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	allowedOrigins []string
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = s.withRateLimit(handler)
	handler = util.WithCORS(s.allowedOrigins, handler)
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithRequestLog("bookrag", handler)
	handler = util.WithRequestID(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/books/ingest", s.handleIngest)
	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/sessions", s.handleSessions)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.HandleFunc("/live", s.handleLive)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/ready", "/live":
			next.ServeHTTP(w, r)
			return
		}
		if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r, s.trustedProxies)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ingestRequest struct {
	Title    string            `json:"title"`
	Author   string            `json:"author"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type ingestResponse struct {
	BookID  string `json:"book_id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.IngestBook(r.Context(), app.IngestRequest{
		Title:    req.Title,
		Author:   req.Author,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		BookID:  result.BookID,
		Title:   result.Title,
		Status:  "success",
		Message: "book ingested",
	})
}

type chatRequest struct {
	SessionID    string          `json:"session_id"`
	BookID       string          `json:"book_id"`
	Query        string          `json:"query"`
	Mode         domain.ChatMode `json:"mode"`
	SelectedText string          `json:"selected_text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	answer, err := s.app.Chat(r.Context(), app.ChatRequest{
		SessionID:    req.SessionID,
		BookID:       req.BookID,
		Query:        req.Query,
		Mode:         req.Mode,
		SelectedText: req.SelectedText,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type sessionRequest struct {
	UserID          string            `json:"user_id"`
	BookID          string            `json:"book_id"`
	SessionMetadata map[string]string `json:"session_metadata"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session, err := s.app.CreateSession(r.Context(), req.UserID, req.BookID, req.SessionMetadata)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: session.ID,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		Status:    "active",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"components": s.app.Health(r.Context()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps the error taxonomy onto HTTP statuses. Invalid input
// and not-found surface with their message; everything else becomes a
// generic 500 with the detail kept in the logs.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrBookNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
