// Package apperr defines the error kinds shared by the indexing and retrieval paths.
// Callers classify failures with errors.Is against the sentinel kinds and
// extract context with errors.As against the structured types.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds.
var (
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrEmbeddingBatchFailure = errors.New("embedding batch failed")
	ErrEmbeddingUnavailable  = errors.New("embedding unavailable")
	ErrDimensionMismatch     = errors.New("dimension mismatch")
	ErrStoreWrite            = errors.New("store write failed")
	ErrNoText                = errors.New("no text extracted")
)

// InvalidParameter returns an error of kind ErrInvalidParameter with a formatted message.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// Unavailable wraps err as ErrEmbeddingUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return ErrEmbeddingUnavailable
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
}

// Stage names a step of the document pipeline.
type Stage string

const (
	StageExtracted Stage = "extracted"
	StageChunked   Stage = "chunked"
	StageEmbedded  Stage = "embedded"
	StageStored    Stage = "stored"
)

// StageError reports the pipeline stage a document could not reach.
type StageError struct {
	DocumentID string
	Stage      Stage
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("document %q failed before stage %s: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// BatchFailure records one embedding batch that could not be computed.
// Start and End delimit the affected input texts as [Start, End).
type BatchFailure struct {
	Batch int
	Start int
	End   int
	Err   error
}

func (e *BatchFailure) Error() string {
	return fmt.Sprintf("embedding batch %d [%d,%d) failed: %v", e.Batch, e.Start, e.End, e.Err)
}

func (e *BatchFailure) Unwrap() []error { return []error{ErrEmbeddingBatchFailure, e.Err} }

// StoreWriteError reports a failed upsert batch. Written counts the points
// of earlier batches that were acknowledged before the failure.
type StoreWriteError struct {
	Collection string
	DocumentID string
	Batch      int
	Written    int
	Err        error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("upsert of %q into %s failed at batch %d after %d points: %v",
		e.DocumentID, e.Collection, e.Batch, e.Written, e.Err)
}

func (e *StoreWriteError) Unwrap() []error { return []error{ErrStoreWrite, e.Err} }

// DimensionError reports a vector whose length differs from the collection's.
// ChunkIndex is -1 when the vector is not tied to a chunk (e.g. a query).
type DimensionError struct {
	Collection string
	Want       int
	Got        int
	ChunkIndex int
}

func (e *DimensionError) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("collection %s expects %d dimensions, chunk %d has %d", e.Collection, e.Want, e.ChunkIndex, e.Got)
	}
	return fmt.Sprintf("collection %s expects %d dimensions, got %d", e.Collection, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// Code returns a stable, machine-readable name for the kind of err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrStoreWrite):
		return "store_write_failure"
	case errors.Is(err, ErrEmbeddingBatchFailure):
		return "embedding_batch_failure"
	case errors.Is(err, ErrNoText):
		return "no_text"
	default:
		return "internal"
	}
}
