// Package storage persists the indexing ledger: one row per pipeline run
// and one row per failure event, so failed documents and batches can be
// found and reprocessed.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/jobmatch/internal/models"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	DocumentID string
	Collection string
	Status     models.RunStatus
	Limit      int
	Offset     int
}

// Ledger defines run and event persistence operations.
type Ledger interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.IndexRun) error
	FinishRun(ctx context.Context, run *models.IndexRun) error
	GetRun(ctx context.Context, id string) (*models.IndexRun, error)
	LatestRun(ctx context.Context, collection, documentID string) (*models.IndexRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.IndexRun, error)
	MarkDeleted(ctx context.Context, collection, documentID string) (int64, error)

	// Event operations
	RecordEvent(ctx context.Context, event *models.IndexEvent) error
	ListEvents(ctx context.Context, runID string) ([]*models.IndexEvent, error)

	// Stats
	CountRuns(ctx context.Context) (map[models.RunStatus]int64, error)
	CountEvents(ctx context.Context) (int64, error)

	Close() error
}
