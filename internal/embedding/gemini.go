package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbedder calls the Gemini embedding API (e.g. text-embedding-004).
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGeminiEmbedder creates a client authenticated with apiKey.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini embedder requires an API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dimensions: dimensions}, nil
}

// EmbedBatch embeds texts with a single BatchEmbedContents call.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = geminiTaskType(task)

	b := em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini returned no embedding for input %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func geminiTaskType(task TaskType) genai.TaskType {
	if task == TaskRetrievalQuery {
		return genai.TaskTypeRetrievalQuery
	}
	return genai.TaskTypeRetrievalDocument
}

// Dimensions returns the configured embedding dimension.
func (e *GeminiEmbedder) Dimensions() int { return e.dimensions }

// Name returns "gemini".
func (e *GeminiEmbedder) Name() string { return "gemini" }

// Close closes the underlying client.
func (e *GeminiEmbedder) Close() error { return e.client.Close() }
