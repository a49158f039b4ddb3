package embedding

import (
	"context"

	"github.com/hyperjump/jobmatch/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline runs. It
// hashes each lowercased word into a signed bucket and L2-normalises the
// result, so identical texts get identical unit vectors and texts sharing
// words have positive cosine similarity.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the feature-hashed embedding of text.
func (e *MockEmbedder) Embed(text string) []float32 {
	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(text) {
		h := HashString(w)
		sign := float32(1)
		if HashString(w+"#")%2 == 1 {
			sign = -1
		}
		emb[h%e.dimensions] += sign
	}
	utils.NormalizeL2(emb)
	return emb
}

// EmbedBatch embeds each text; the task type does not change the result.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string, _ TaskType) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.Embed(text)
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Name returns "mock".
func (e *MockEmbedder) Name() string { return "mock" }

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
