package vector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/models"
)

// DefaultUpsertBatchSize is the number of points written per index call.
const DefaultUpsertBatchSize = 32

// Collection is a named, dimension-fixed set of points in an Index. It
// turns embedded chunks into points with generated IDs and enforces the
// payload and dimension rules before anything reaches the index.
//
// Writes for the same document_id must be serialised by the caller.
type Collection struct {
	index      Index
	name       string
	dimensions int
	batchSize  int
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithBatchSize sets the number of points per upsert call.
func WithBatchSize(n int) CollectionOption {
	return func(c *Collection) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithLogger sets the logger for skipped chunks and batch progress.
func WithLogger(logger *zap.Logger) CollectionOption {
	return func(c *Collection) {
		c.logger = logger
	}
}

// WithClock overrides the created_at timestamp source.
func WithClock(now func() time.Time) CollectionOption {
	return func(c *Collection) {
		c.now = now
	}
}

// NewCollection ensures the collection exists in index and returns a handle to it.
func NewCollection(ctx context.Context, index Index, name string, dimensions int, opts ...CollectionOption) (*Collection, error) {
	if name == "" {
		return nil, apperr.InvalidParameter("collection name cannot be empty")
	}
	if dimensions <= 0 {
		return nil, apperr.InvalidParameter("dimensions must be positive, got %d", dimensions)
	}
	c := &Collection{
		index:      index,
		name:       name,
		dimensions: dimensions,
		batchSize:  DefaultUpsertBatchSize,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := index.EnsureCollection(ctx, name, dimensions); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", name, err)
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Dimensions returns the vector dimension of the collection.
func (c *Collection) Dimensions() int { return c.dimensions }

// Upsert stores chunks of documentID as new points and returns their IDs in
// chunk order. Chunks without a vector are skipped. Every vector is checked
// before the first write, so a dimension mismatch stores nothing. Points
// are written in batches, each acknowledged before the next; if batch k
// fails, the IDs from batches before k are returned together with an
// *apperr.StoreWriteError.
//
// IDs are always fresh, so upserting the same document twice keeps both
// copies; delete the document first to replace it.
func (c *Collection) Upsert(ctx context.Context, documentID string, chunks []models.EmbeddedChunk, metadata map[string]interface{}, ownerID string) ([]string, error) {
	if documentID == "" {
		return nil, apperr.InvalidParameter("document_id cannot be empty")
	}
	if err := models.ValidateMetadata(metadata); err != nil {
		return nil, apperr.InvalidParameter("%v", err)
	}

	createdAt := c.now()
	records := make([]Record, 0, len(chunks))
	for i, ch := range chunks {
		if ch.Vector == nil {
			if c.logger != nil {
				c.logger.Warn("skipping chunk without vector",
					zap.String("collection", c.name),
					zap.String("document_id", documentID),
					zap.Int("chunk_index", i))
			}
			continue
		}
		if len(ch.Vector) != c.dimensions {
			return nil, &apperr.DimensionError{Collection: c.name, Want: c.dimensions, Got: len(ch.Vector), ChunkIndex: i}
		}
		payload := models.Payload{
			DocumentID: documentID,
			Text:       ch.Text,
			ChunkIndex: i,
			NumTokens:  ch.NumTokens,
			CreatedAt:  createdAt,
			UserID:     ownerID,
			Extra:      metadata,
		}
		records = append(records, Record{ID: c.newID(), Vector: ch.Vector, Payload: payload.Fields()})
	}

	ids := make([]string, 0, len(records))
	for batch, start := 0, 0; start < len(records); batch, start = batch+1, start+c.batchSize {
		end := start + c.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := c.index.Upsert(ctx, c.name, records[start:end]); err != nil {
			return ids, &apperr.StoreWriteError{
				Collection: c.name,
				DocumentID: documentID,
				Batch:      batch,
				Written:    len(ids),
				Err:        err,
			}
		}
		for _, r := range records[start:end] {
			ids = append(ids, r.ID)
		}
		if c.logger != nil {
			c.logger.Debug("upserted batch",
				zap.String("collection", c.name),
				zap.String("document_id", documentID),
				zap.Int("batch", batch),
				zap.Int("points", end-start))
		}
	}
	return ids, nil
}

// Search returns at most limit points ordered by descending cosine
// similarity to vector, restricted to payloads matching every filter
// condition and, when threshold is set, scoring at least *threshold.
func (c *Collection) Search(ctx context.Context, vector []float32, limit int, filter map[string]interface{}, threshold *float64) ([]*models.Match, error) {
	if len(vector) != c.dimensions {
		return nil, &apperr.DimensionError{Collection: c.name, Want: c.dimensions, Got: len(vector), ChunkIndex: -1}
	}
	if limit <= 0 {
		return nil, apperr.InvalidParameter("limit must be positive, got %d", limit)
	}
	if err := models.ValidateMetadata(filter); err != nil {
		return nil, apperr.InvalidParameter("filter: %v", err)
	}
	matches, err := c.index.Search(ctx, c.name, &SearchRequest{
		Vector:         vector,
		Filter:         Filter(filter),
		Limit:          limit,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", c.name, err)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	kept := matches[:0]
	for _, m := range matches {
		if threshold != nil && m.Score < *threshold {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	for i, m := range kept {
		m.Rank = i + 1
	}
	return kept, nil
}

// Delete removes every point of documentID and returns how many were
// removed. Deleting an unknown document removes nothing and is not an error.
func (c *Collection) Delete(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, apperr.InvalidParameter("document_id cannot be empty")
	}
	filter := Filter{models.FieldDocumentID: documentID}
	n, err := c.index.Count(ctx, c.name, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count points of %q: %w", documentID, err)
	}
	if n == 0 {
		return 0, nil
	}
	if err := c.index.DeleteByFilter(ctx, c.name, filter); err != nil {
		return 0, fmt.Errorf("failed to delete points of %q: %w", documentID, err)
	}
	return n, nil
}

// Count returns the number of points matching filter.
func (c *Collection) Count(ctx context.Context, filter map[string]interface{}) (int, error) {
	return c.index.Count(ctx, c.name, Filter(filter))
}

// Points returns the stored chunks of documentID ordered by chunk index.
func (c *Collection) Points(ctx context.Context, documentID string) ([]*models.StoredChunk, error) {
	if documentID == "" {
		return nil, apperr.InvalidParameter("document_id cannot be empty")
	}
	records, err := c.index.Scroll(ctx, c.name, Filter{models.FieldDocumentID: documentID}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read points of %q: %w", documentID, err)
	}
	out := make([]*models.StoredChunk, 0, len(records))
	for _, r := range records {
		p := models.PayloadFromFields(r.Payload)
		out = append(out, &models.StoredChunk{ID: r.ID, ChunkIndex: p.ChunkIndex, Text: p.Text, Payload: r.Payload})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}
