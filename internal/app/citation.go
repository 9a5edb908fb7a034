package app

import (
	"strings"

	"bookrag/pkg/domain"
)

const (
	citationSnippetLimit = 200
	minSegmentLength     = 10
	metadataUnknown      = "Unknown"
)

// buildCitations derives one citation per context chunk, carrying a
// truncated snippet and best-effort location metadata.
func buildCitations(contexts []domain.ContextChunk) []domain.Citation {
	citations := make([]domain.Citation, 0, len(contexts))
	for _, chunk := range contexts {
		citations = append(citations, domain.Citation{
			Text:           truncateSnippet(chunk.Text, citationSnippetLimit),
			Chapter:        metadataField(chunk.Metadata, "chapter"),
			Page:           metadataField(chunk.Metadata, "page"),
			Paragraph:      metadataField(chunk.Metadata, "paragraph"),
			RelevanceScore: chunk.Score,
		})
	}
	return citations
}

// validateCitations marks each citation validated when one of its source
// chunk's sentence-like segments appears verbatim in the answer,
// case-folded. The check runs against the full chunk text, not the
// truncated snippet, so sentences past the snippet cut still count.
// This is a best-effort signal, not a correctness guarantee: paraphrased
// answers produce false negatives. It never fails; citations it cannot
// check stay validated=false.
func validateCitations(answer string, citations []domain.Citation, contexts []domain.ContextChunk) {
	folded := strings.ToLower(answer)
	for i := range citations {
		source := citations[i].Text
		if i < len(contexts) {
			source = contexts[i].Text
		}
		citations[i].Validated = citationAppears(folded, source)
	}
}

func citationAppears(foldedAnswer, source string) bool {
	if strings.TrimSpace(source) == "" || foldedAnswer == "" {
		return false
	}
	for _, segment := range strings.Split(source, ". ") {
		segment = strings.TrimSpace(segment)
		if len(segment) <= minSegmentLength {
			continue
		}
		if strings.Contains(foldedAnswer, strings.ToLower(segment)) {
			return true
		}
	}
	return false
}

func truncateSnippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func metadataField(meta map[string]string, key string) string {
	if value := strings.TrimSpace(meta[key]); value != "" {
		return value
	}
	return metadataUnknown
}
