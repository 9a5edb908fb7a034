package app

import (
	"context"
	"fmt"
	"strings"

	"bookrag/internal/util"
	"bookrag/pkg/ai"
	"bookrag/pkg/domain"
)

const (
	notFoundAnswer = "I could not find relevant information in the book to answer your question. " +
		"Try rephrasing, or ask about a different part of the book."

	generationFailedAnswer = "I ran into a problem while generating an answer. Please try again."

	fullBookDirective = "You are a reading assistant. Answer only from the provided book " +
		"content. Cite the passages you used. If the content does not answer the " +
		"question, say so."

	selectedTextDirective = "You are a reading assistant. Answer only from the selected text " +
		"provided by the user. Do not bring in outside knowledge."
)

// generateAnswer produces the answer and its citations from the retrieved
// context. Empty context short-circuits to a fixed not-found answer without
// touching the generation backend. Backend failures at request time are
// logged and converted into a safe generic answer; they never propagate.
func (a *App) generateAnswer(ctx context.Context, mode domain.ChatMode, query string, contexts []domain.ContextChunk) (string, []domain.Citation) {
	if len(contexts) == 0 {
		return notFoundAnswer, []domain.Citation{}
	}

	citations := buildCitations(contexts)

	if a.generator.Backend() == ai.BackendFallback {
		// Degraded mode: the placeholder answer cannot be substring-checked,
		// so citations pass through as validated.
		answer, _ := a.generator.GenerateText(ctx, "", query)
		for i := range citations {
			citations[i].Validated = true
		}
		return answer, citations
	}

	answer, err := a.generator.GenerateText(ctx, systemDirective(mode), buildUserPrompt(query, contexts))
	if err != nil {
		util.LoggerFromContext(ctx).Error("generation backend call failed",
			"backend", a.generator.Backend(), "err", err)
		return generationFailedAnswer, []domain.Citation{}
	}

	validateCitations(answer, citations, contexts)
	return answer, citations
}

func systemDirective(mode domain.ChatMode) string {
	if mode == domain.ModeSelectedText {
		return selectedTextDirective
	}
	return fullBookDirective
}

func buildUserPrompt(query string, contexts []domain.ContextChunk) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, chunk := range contexts {
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, chunk.Text))
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}
