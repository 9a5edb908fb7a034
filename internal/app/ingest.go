package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bookrag/internal/util"
	"bookrag/pkg/ai"
	"bookrag/pkg/domain"
	"bookrag/pkg/vector"
)

const (
	previewLimit = 2000

	defaultEmbedBatchSize   = 32
	defaultEmbedConcurrency = 4
)

// IngestRequest carries a book submitted for ingestion.
type IngestRequest struct {
	Title    string
	Author   string
	Content  string
	Metadata map[string]string
}

// IngestResult reports the outcome of an ingestion.
type IngestResult struct {
	BookID     string
	Title      string
	ChunkCount int
}

// IngestBook normalizes, chunks, embeds, and indexes a book. The raw text
// goes to object storage, chunk rows (with cached embeddings) to the
// relational store, and chunk vectors to the vector store. When indexing
// fails the book row is removed again so a failed ingest leaves no
// half-indexed book behind.
func (a *App) IngestBook(ctx context.Context, req IngestRequest) (IngestResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return IngestResult{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		return IngestResult{}, fmt.Errorf("%w: author is required", ErrInvalidInput)
	}
	content := normalizeContent(req.Content)
	if content == "" {
		return IngestResult{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	bookID := util.NewID()
	now := time.Now().UTC()
	book := domain.Book{
		ID:             bookID,
		Title:          title,
		Author:         author,
		ContentPreview: truncateSnippet(content, previewLimit),
		StorageKey:     fmt.Sprintf("books/%s.txt", bookID),
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := a.objects.PutText(ctx, book.StorageKey, content); err != nil {
		return IngestResult{}, fmt.Errorf("store raw text: %w", err)
	}
	if err := a.store.SaveBook(book); err != nil {
		return IngestResult{}, fmt.Errorf("save book: %w", err)
	}

	texts := chunkWords(content, a.chunkSize, a.chunkOverlap)
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:         chunkPointID(bookID, i),
			BookID:     bookID,
			ChunkIndex: i,
			Content:    text,
			Metadata:   map[string]string{"source": "text"},
			CreatedAt:  now,
		})
	}

	if err := a.embedChunks(ctx, chunks); err != nil {
		a.discardBook(ctx, book)
		return IngestResult{}, fmt.Errorf("embed chunks: %w", err)
	}
	if err := a.store.ReplaceChunks(bookID, chunks); err != nil {
		a.discardBook(ctx, book)
		return IngestResult{}, fmt.Errorf("save chunks: %w", err)
	}
	if err := a.indexChunks(ctx, book, chunks); err != nil {
		a.discardBook(ctx, book)
		return IngestResult{}, fmt.Errorf("index chunks: %w", err)
	}

	util.LoggerFromContext(ctx).Info("book ingested",
		"book_id", bookID, "title", title, "chunks", len(chunks))
	return IngestResult{BookID: bookID, Title: title, ChunkCount: len(chunks)}, nil
}

// chunkPointID derives a stable UUID for a chunk so re-ingestion overwrites
// rather than duplicates vector points.
func chunkPointID(bookID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s_%d", bookID, index))).String()
}

func (a *App) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batchSize := defaultEmbedBatchSize
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultEmbedConcurrency)
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		g.Go(func() error {
			texts := make([]string, 0, len(batch))
			for _, chunk := range batch {
				texts = append(texts, chunk.Content)
			}
			embeddings, err := ai.EmbedAll(gctx, a.embedder, texts, ai.InputTypeDocument)
			if err != nil {
				return err
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = embeddings[i]
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *App) indexChunks(ctx context.Context, book domain.Book, chunks []domain.Chunk) error {
	if err := a.vectors.EnsureCollection(ctx); err != nil {
		return err
	}
	points := make([]vector.Point, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, vector.Point{
			ID:     chunk.ID,
			Values: chunk.Embedding,
			Payload: map[string]any{
				"content":     chunk.Content,
				"book_id":     book.ID,
				"title":       book.Title,
				"author":      book.Author,
				"chunk_index": chunk.ChunkIndex,
				"metadata":    anyMap(chunk.Metadata),
			},
		})
	}
	return a.vectors.Upsert(ctx, points)
}

func anyMap(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for key, value := range meta {
		out[key] = value
	}
	return out
}

func (a *App) discardBook(ctx context.Context, book domain.Book) {
	if err := a.store.DeleteBook(book.ID); err != nil {
		util.LoggerFromContext(ctx).Error("cleanup failed book", "book_id", book.ID, "err", err)
	}
	if err := a.objects.Delete(ctx, book.StorageKey); err != nil {
		util.LoggerFromContext(ctx).Error("cleanup raw text", "book_id", book.ID, "err", err)
	}
}
