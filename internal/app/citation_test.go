package app

import (
	"strings"
	"testing"

	"bookrag/pkg/domain"
)

func TestBuildCitations(t *testing.T) {
	contexts := []domain.ContextChunk{
		{
			Text:  "Paris is the capital of France.",
			Score: 0.92,
			Metadata: map[string]string{
				"chapter": "3",
				"page":    "120",
			},
		},
		{
			Text:  strings.Repeat("x", 300),
			Score: 0.4,
		},
	}
	citations := buildCitations(contexts)
	if len(citations) != len(contexts) {
		t.Fatalf("citations = %d, want %d", len(citations), len(contexts))
	}
	if citations[0].Chapter != "3" || citations[0].Page != "120" || citations[0].Paragraph != "Unknown" {
		t.Errorf("metadata = %+v", citations[0])
	}
	if citations[0].RelevanceScore != 0.92 {
		t.Errorf("score = %v", citations[0].RelevanceScore)
	}
	if citations[1].Chapter != "Unknown" {
		t.Errorf("missing metadata should default to Unknown, got %q", citations[1].Chapter)
	}
	if len(citations[1].Text) != 203 || !strings.HasSuffix(citations[1].Text, "...") {
		t.Errorf("snippet not truncated: len=%d", len(citations[1].Text))
	}
}

func TestValidateCitations(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		source string
		want   bool
	}{
		{
			"exact sentence match",
			"According to the text, Paris is the capital of France. More detail follows.",
			"Paris is the capital of France. It lies on the Seine.",
			true,
		},
		{
			"case folded match",
			"PARIS IS THE CAPITAL OF FRANCE AND A MAJOR CITY in every sense.",
			"Paris is the capital of France and a major city. Unrelated trailing text.",
			true,
		},
		{
			"paraphrased answer",
			"The French capital is Paris.",
			"Paris is the capital of France. It lies on the Seine.",
			false,
		},
		{
			"short segments ignored",
			"short one. two.",
			"short one. two.",
			false,
		},
		{
			"empty source",
			"anything",
			"   ",
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			contexts := []domain.ContextChunk{{Text: tc.source}}
			citations := buildCitations(contexts)
			validateCitations(tc.answer, citations, contexts)
			if citations[0].Validated != tc.want {
				t.Errorf("validated = %v, want %v", citations[0].Validated, tc.want)
			}
		})
	}
}

func TestValidateCitationsUsesFullChunkText(t *testing.T) {
	filler := strings.Repeat("filler words stretching the chunk well past the snippet cut ", 5) + "and onward."
	tail := "The decisive sentence sits far beyond the snippet boundary."
	contexts := []domain.ContextChunk{{Text: filler + " " + tail}}

	citations := buildCitations(contexts)
	if strings.Contains(citations[0].Text, tail) {
		t.Fatal("test setup: tail must lie past the truncated snippet")
	}

	validateCitations("As the book says, "+tail, citations, contexts)
	if !citations[0].Validated {
		t.Error("sentence past the snippet cut must still validate")
	}
}

func TestValidateCitationsEmptyAnswer(t *testing.T) {
	contexts := []domain.ContextChunk{{Text: "A long enough source sentence. Another one."}}
	citations := buildCitations(contexts)
	validateCitations("", citations, contexts)
	if citations[0].Validated {
		t.Error("empty answer must not validate citations")
	}
}
