package ai

import (
	"context"
	"hash/fnv"
	"math"
)

const defaultDummyDimensions = 1024

// DummyEmbedder is the last-resort embedding backend. It derives a
// deterministic, L2-normalized vector from a hash of the text so the system
// can run without any real provider. The vectors carry no semantic meaning;
// callers are expected to log loudly when this backend is selected.
type DummyEmbedder struct {
	dimensions int
}

// NewDummyEmbedder builds a dummy embedder with the given dimension.
func NewDummyEmbedder(dimensions int) *DummyEmbedder {
	if dimensions <= 0 {
		dimensions = defaultDummyDimensions
	}
	return &DummyEmbedder{dimensions: dimensions}
}

// Backend identifies the active embedding backend.
func (e *DummyEmbedder) Backend() string { return BackendDummy }

// EmbedText returns the deterministic dummy vector for the text. Never fails.
func (e *DummyEmbedder) EmbedText(_ context.Context, text, _ string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, e.dimensions)
	var norm float64
	state := seed
	for i := range out {
		// xorshift expansion of the seed into one byte per dimension.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(state & 0xff)
		out[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out, nil
}

// EmbedTexts embeds each text independently.
func (e *DummyEmbedder) EmbedTexts(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		embedding, err := e.EmbedText(ctx, text, inputType)
		if err != nil {
			return nil, err
		}
		out = append(out, embedding)
	}
	return out, nil
}
