package domain

import "time"

// ChatMode selects how context is gathered for a chat exchange.
type ChatMode string

const (
	ModeFullBook     ChatMode = "full_book"
	ModeSelectedText ChatMode = "selected_text_only"
)

// Valid reports whether the mode is one of the supported chat modes.
func (m ChatMode) Valid() bool {
	return m == ModeFullBook || m == ModeSelectedText
}

// Book is an ingested document. Immutable after ingestion.
type Book struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Author         string            `json:"author"`
	ContentPreview string            `json:"contentPreview,omitempty"`
	StorageKey     string            `json:"-"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Chunk is one retrieval unit derived from a book's text.
// Chunks are derived deterministically at ingestion time and never mutated,
// only superseded by re-ingestion.
type Chunk struct {
	ID         string            `json:"id"`
	BookID     string            `json:"bookId"`
	ChunkIndex int               `json:"chunkIndex"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Embedding  []float32         `json:"-"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Session groups chat exchanges. Created lazily on first use of an unknown
// session id; only the timestamps are ever refreshed afterwards.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// ContextChunk is a retrieved (or user-supplied) context entry passed to
// generation. It exists only for the duration of a request.
type ContextChunk struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
	Source   string            `json:"source"`
}

// Citation points back at a context chunk that backed an answer. Validated is
// a best-effort substring heuristic, not a correctness guarantee.
type Citation struct {
	Text           string  `json:"text"`
	Chapter        string  `json:"chapter"`
	Page           string  `json:"page"`
	Paragraph      string  `json:"paragraph"`
	RelevanceScore float64 `json:"relevance_score"`
	Validated      bool    `json:"validated"`
}

// Answer is the result of one chat exchange.
type Answer struct {
	SessionID  string     `json:"session_id"`
	ResponseID string     `json:"response_id"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Mode       ChatMode   `json:"mode"`
	Timestamp  time.Time  `json:"timestamp"`
}
