package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/jobmatch/internal/config"
)

// NewEmbedder builds the backend selected by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions)
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "onnx":
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewClientFromConfig builds the backend and wraps it in a Client.
func NewClientFromConfig(ctx context.Context, cfg *config.EmbeddingConfig, opts ...ClientOption) (*Client, error) {
	e, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}
	base := []ClientOption{
		WithBatchSize(cfg.BatchSize),
		WithTimeout(cfg.Timeout),
		WithQueryCache(cfg.CacheSize),
	}
	return NewClient(e, append(base, opts...)...), nil
}
