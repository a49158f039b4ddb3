// Package vector stores embedded chunks as points in named collections of an
// external vector index and answers filtered similarity queries.
package vector

import (
	"context"
	"errors"

	"github.com/hyperjump/jobmatch/internal/models"
)

// ErrCollectionNotFound is returned when an operation targets a collection
// that was never ensured.
var ErrCollectionNotFound = errors.New("collection not found")

// Filter is a conjunction of equality conditions on payload fields.
type Filter map[string]interface{}

// Record is a point in the index's storage form: a flattened payload.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// SearchRequest is a filtered nearest-neighbour query.
type SearchRequest struct {
	Vector         []float32
	Filter         Filter
	Limit          int
	ScoreThreshold *float64
}

// Index is the external vector index capability: collection management,
// point upsert, filtered cosine search, and delete by filter.
type Index interface {
	// EnsureCollection creates the collection with cosine distance if it is
	// absent. An existing collection, including one created concurrently by
	// another process, is not an error.
	EnsureCollection(ctx context.Context, name string, dimensions int) error
	ListCollections(ctx context.Context) ([]string, error)
	// Upsert writes records and returns only after the index acknowledged them.
	Upsert(ctx context.Context, collection string, records []Record) error
	Search(ctx context.Context, collection string, req *SearchRequest) ([]*models.Match, error)
	// Scroll returns up to limit records matching filter (0 means all), without vectors.
	Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error)
	Count(ctx context.Context, collection string, filter Filter) (int, error)
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error
	Type() string
	Close() error
}
