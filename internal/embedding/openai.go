package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an embedder. baseURL may point at any
// OpenAI-compatible server; empty uses the public API.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) (*OpenAIEmbedder, error) {
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("openai embedder requires an API key")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
	}, nil
}

// EmbedBatch embeds texts with one request. OpenAI models have no task
// type, so the hint is ignored.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string, _ TaskType) ([][]float32, error) {
	req := openai.EmbeddingRequest{Input: texts, Model: e.model}
	// Only the text-embedding-3 family accepts a reduced output dimension.
	if strings.HasPrefix(string(e.model), "text-embedding-3") {
		req.Dimensions = e.dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai returned no embedding for input %d", i)
		}
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Name returns "openai".
func (e *OpenAIEmbedder) Name() string { return "openai" }

// Close is a no-op; the HTTP client holds no resources.
func (e *OpenAIEmbedder) Close() error { return nil }
