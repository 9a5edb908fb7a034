package store

import "bookrag/pkg/domain"

// Store defines persistence operations for books, sessions, and chunks.
type Store interface {
	// Ping reports whether the backing store is reachable.
	Ping() error

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	DeleteBook(id string) error

	// sessions
	SaveSession(domain.Session) error
	GetSession(id string) (domain.Session, bool, error)
	TouchSession(id string) error

	// chunks
	ReplaceChunks(bookID string, chunks []domain.Chunk) error
	ListChunksByBook(bookID string) ([]domain.Chunk, error)
	SetChunkEmbedding(id string, embedding []float32) error
}
