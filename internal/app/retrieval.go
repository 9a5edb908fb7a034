package app

import (
	"context"
	"fmt"
	"strings"

	"bookrag/pkg/ai"
	"bookrag/pkg/domain"
	"bookrag/pkg/vector"
)

const (
	maxTopK = 10

	sourceBook         = "book"
	sourceSelectedText = "user_selection"
)

// retrieveContext gathers context chunks for a chat exchange.
//
// full_book embeds the query and searches the vector store filtered by book
// id. selected_text_only bypasses retrieval and wraps the user-supplied text
// as a single synthetic entry with maximal score. An empty result in
// full_book mode is not an error: generation handles empty context itself.
func (a *App) retrieveContext(ctx context.Context, mode domain.ChatMode, bookID, query, selectedText string) ([]domain.ContextChunk, error) {
	if mode == domain.ModeSelectedText {
		selected := strings.TrimSpace(selectedText)
		if selected == "" {
			return nil, fmt.Errorf("%w: selected_text is required in selected_text_only mode", ErrInvalidInput)
		}
		return []domain.ContextChunk{{
			Text:     selected,
			Score:    1.0,
			Metadata: map[string]string{"source": sourceSelectedText},
			Source:   sourceSelectedText,
		}}, nil
	}

	queryVec, err := a.embedder.EmbedText(ctx, query, ai.InputTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	topK := a.topK
	if topK <= 0 || topK > maxTopK {
		topK = maxTopK
	}
	matches, err := a.vectors.Search(ctx, queryVec, topK, map[string]string{"book_id": bookID})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	contexts := make([]domain.ContextChunk, 0, len(matches))
	for _, match := range matches {
		contexts = append(contexts, contextFromMatch(match))
	}
	return contexts, nil
}

func contextFromMatch(match vector.Match) domain.ContextChunk {
	text, _ := match.Payload["content"].(string)
	meta := make(map[string]string)
	for key, value := range match.Payload {
		if key == "content" {
			continue
		}
		switch v := value.(type) {
		case string:
			meta[key] = v
		case float64:
			meta[key] = strings.TrimSuffix(fmt.Sprintf("%g", v), ".0")
		case int64:
			meta[key] = fmt.Sprintf("%d", v)
		case bool:
			meta[key] = fmt.Sprintf("%t", v)
		}
	}
	return domain.ContextChunk{
		Text:     text,
		Score:    match.Score,
		Metadata: meta,
		Source:   sourceBook,
	}
}
