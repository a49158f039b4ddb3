package vector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/config"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-process brute-force search. Good for tests and small corpora.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeQdrant uses a qdrant server over gRPC.
	IndexTypeQdrant IndexType = "qdrant"
)

// NewIndex creates the index selected by cfg.Type. For the memory index,
// a snapshot at snapshotPath is loaded when present.
func NewIndex(cfg *config.VectorConfig, snapshotPath string, logger *zap.Logger) (Index, error) {
	switch IndexType(cfg.Type) {
	case IndexTypeMemory, "":
		idx := NewMemoryIndex()
		if err := idx.Load(snapshotPath); err != nil {
			return nil, fmt.Errorf("failed to load index snapshot: %w", err)
		}
		return idx, nil
	case IndexTypeQdrant:
		return NewQdrantIndex(QdrantOptions{
			Addr:           cfg.Qdrant.Addr,
			APIKey:         cfg.Qdrant.APIKey,
			TLS:            cfg.Qdrant.TLS,
			Timeout:        cfg.Qdrant.Timeout,
			PayloadIndexes: cfg.Qdrant.PayloadIndexes,
			Logger:         logger,
		})
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, qdrant)", cfg.Type)
	}
}

// Snapshotter is implemented by indexes that persist to a local file.
type Snapshotter interface {
	Save(path string) error
}
