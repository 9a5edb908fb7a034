package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bookrag/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and single-node
// development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	books    map[string]domain.Book
	order    []string
	sessions map[string]domain.Session
	chunks   map[string][]domain.Chunk // key: book ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:    make(map[string]domain.Book),
		sessions: make(map[string]domain.Session),
		chunks:   make(map[string][]domain.Chunk),
	}
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping() error { return nil }

// SaveBook stores or replaces a book record and tracks insertion order.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.order = append(m.order, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns books in insertion order.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.order))
	for _, id := range m.order {
		if b, ok := m.books[id]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}

// DeleteBook removes a book and its chunks.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	delete(m.chunks, id)
	filtered := m.order[:0]
	for _, item := range m.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.order = filtered
	return nil
}

// SaveSession stores or replaces a session.
func (m *MemoryStore) SaveSession(sess domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

// GetSession retrieves a session by ID.
func (m *MemoryStore) GetSession(id string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok, nil
}

// TouchSession bumps the session's updated timestamp.
func (m *MemoryStore) TouchSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	sess.UpdatedAt = time.Now().UTC()
	m.sessions[id] = sess
	return nil
}

// ReplaceChunks replaces all chunks for a book.
func (m *MemoryStore) ReplaceChunks(bookID string, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]domain.Chunk, len(chunks))
	copy(copied, chunks)
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].ChunkIndex < copied[j].ChunkIndex
	})
	m.chunks[bookID] = copied
	return nil
}

// ListChunksByBook returns chunks for a book in index order.
func (m *MemoryStore) ListChunksByBook(bookID string) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.chunks[bookID]
	res := make([]domain.Chunk, len(chunks))
	copy(res, chunks)
	return res, nil
}

// SetChunkEmbedding updates the cached embedding for a chunk.
func (m *MemoryStore) SetChunkEmbedding(id string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for bookID, chunks := range m.chunks {
		for i, chunk := range chunks {
			if chunk.ID == id {
				copied := make([]float32, len(embedding))
				copy(copied, embedding)
				chunks[i].Embedding = copied
				m.chunks[bookID] = chunks
				return nil
			}
		}
	}
	return fmt.Errorf("chunk %q not found", id)
}
