// Package models defines core data structures for chunks, points, index requests, and search results.
package models

import "time"

// Chunk is a token window of a document's text. Token offsets are
// half-open: the chunk covers tokens [StartToken, EndToken).
type Chunk struct {
	Text       string `json:"text"`
	StartToken int    `json:"start_token"`
	EndToken   int    `json:"end_token"`
	NumTokens  int    `json:"num_tokens"`
}

// EmbeddedChunk is a chunk paired with its embedding. A nil Vector means
// the chunk has no embedding and must not be stored.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"-"`
}

// IndexRequest describes one logical document to run through the pipeline.
// Exactly one of Text or Path should be set. Zero sizes fall back to the configured defaults.
type IndexRequest struct {
	DocumentID   string                 `json:"document_id"`
	Collection   string                 `json:"collection,omitempty"`
	Text         string                 `json:"text,omitempty"`
	Path         string                 `json:"path,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	OwnerID      string                 `json:"owner_id,omitempty"`
	ChunkSize    int                    `json:"chunk_size,omitempty"`
	ChunkOverlap *int                   `json:"chunk_overlap,omitempty"`
	BatchSize    int                    `json:"batch_size,omitempty"`
}

// IndexResult is the outcome of indexing one document.
type IndexResult struct {
	DocumentID string   `json:"document_id"`
	Collection string   `json:"collection"`
	RunID      string   `json:"run_id,omitempty"`
	PointIDs   []string `json:"point_ids"`
	ChunkCount int      `json:"chunk_count"`
	// DegradedChunks were stored with a zero-vector placeholder after their embedding batch failed.
	DegradedChunks []int `json:"degraded_chunks,omitempty"`
	// FailedChunks were not stored because their embedding batch failed.
	FailedChunks []int `json:"failed_chunks,omitempty"`
	Duration     int64 `json:"duration_ms"`
}

// IndexRun is the ledger record of one pipeline invocation.
type IndexRun struct {
	ID             string     `json:"id" db:"id"`
	DocumentID     string     `json:"document_id" db:"document_id"`
	Collection     string     `json:"collection" db:"collection"`
	Source         string     `json:"source,omitempty" db:"source"`
	Status         RunStatus  `json:"status" db:"status"`
	Stage          string     `json:"stage" db:"stage"`
	ChunkCount     int        `json:"chunk_count" db:"chunk_count"`
	PointCount     int        `json:"point_count" db:"point_count"`
	DegradedChunks int        `json:"degraded_chunks" db:"degraded_chunks"`
	Error          string     `json:"error,omitempty" db:"error"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// RunStatus is the lifecycle state of an IndexRun.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunDegraded  RunStatus = "degraded"
	RunFailed    RunStatus = "failed"
	RunDeleted   RunStatus = "deleted"
)

// IndexEvent records a recoverable or fatal problem during a run with enough
// context (document, batch, chunk) to reprocess selectively. BatchIndex and
// ChunkIndex are -1 when not applicable.
type IndexEvent struct {
	ID         int64     `json:"id" db:"id"`
	RunID      string    `json:"run_id" db:"run_id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Kind       string    `json:"kind" db:"kind"`
	Stage      string    `json:"stage" db:"stage"`
	BatchIndex int       `json:"batch_index" db:"batch_index"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
