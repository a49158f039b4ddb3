// Package embedding turns text into fixed-dimension vectors through a
// pluggable backend (Gemini, OpenAI, ONNX or a deterministic mock) and wraps
// it in a batching Client with per-batch degradation for documents and
// fail-fast semantics for queries.
package embedding

import "context"

// TaskType hints the backend about how the vectors will be used.
type TaskType int

const (
	TaskRetrievalDocument TaskType = iota
	TaskRetrievalQuery
)

func (t TaskType) String() string {
	switch t {
	case TaskRetrievalQuery:
		return "retrieval_query"
	default:
		return "retrieval_document"
	}
}

// Embedder produces vector embeddings for a batch of texts. Implementations
// return exactly one vector per input, in input order, or an error for the
// whole batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
	Dimensions() int
	Name() string
	Close() error
}
