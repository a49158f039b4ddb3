package vector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/models"
)

func chunk(text string, vec ...float32) models.EmbeddedChunk {
	return models.EmbeddedChunk{Chunk: models.Chunk{Text: text, NumTokens: 1}, Vector: vec}
}

func newTestCollection(t *testing.T, idx Index, dims int, opts ...CollectionOption) *Collection {
	t.Helper()
	c, err := NewCollection(context.Background(), idx, "docs", dims, opts...)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	return c
}

func TestCollection_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, NewMemoryIndex(), 3)

	ids, err := c.Upsert(ctx, "doc-1", []models.EmbeddedChunk{
		chunk("alpha", 1, 0, 0),
		chunk("beta", 0, 1, 0),
	}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}

	th := 0.99
	matches, err := c.Search(ctx, []float32{0, 1, 0}, 1, nil, &th)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d", len(matches))
	}
	m := matches[0]
	if m.ID != ids[1] || m.Text() != "beta" || m.DocumentID() != "doc-1" || m.Rank != 1 {
		t.Errorf("unexpected match %+v", m)
	}
	if m.Score < 0.99 {
		t.Errorf("score %f below threshold", m.Score)
	}
}

func TestCollection_DeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, NewMemoryIndex(), 2)
	_, _ = c.Upsert(ctx, "keep", []models.EmbeddedChunk{chunk("k", 1, 1)}, nil, "")
	_, err := c.Upsert(ctx, "gone", []models.EmbeddedChunk{chunk("a", 1, 0), chunk("b", 0, 1), chunk("c", 1, 1)}, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	n, err := c.Delete(ctx, "gone")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}

	matches, _ := c.Search(ctx, []float32{1, 0}, 10, map[string]interface{}{"document_id": "gone"}, nil)
	if len(matches) != 0 {
		t.Errorf("search still returns %d points of deleted document", len(matches))
	}
	total, _ := c.Count(ctx, nil)
	if total != 1 {
		t.Errorf("remaining = %d, want 1", total)
	}

	n, err = c.Delete(ctx, "gone")
	if err != nil || n != 0 {
		t.Errorf("second delete = %d, %v", n, err)
	}
}

func TestCollection_FilterConjunction(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, NewMemoryIndex(), 2)
	_, _ = c.Upsert(ctx, "d1", []models.EmbeddedChunk{chunk("a", 1, 0)}, map[string]interface{}{"category": "eng"}, "A")
	_, _ = c.Upsert(ctx, "d2", []models.EmbeddedChunk{chunk("b", 1, 0)}, map[string]interface{}{"category": "eng"}, "B")
	_, _ = c.Upsert(ctx, "d3", []models.EmbeddedChunk{chunk("c", 1, 0)}, map[string]interface{}{"category": "ops"}, "A")

	matches, err := c.Search(ctx, []float32{1, 0}, 10, map[string]interface{}{"user_id": "A", "category": "eng"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].DocumentID() != "d1" {
		t.Errorf("matches = %+v", matches)
	}

	matches, _ = c.Search(ctx, []float32{1, 0}, 10, map[string]interface{}{"user_id": "A"}, nil)
	for _, m := range matches {
		if m.Payload["user_id"] != "A" {
			t.Errorf("leaked payload %v", m.Payload)
		}
	}
	if len(matches) != 2 {
		t.Errorf("user A matches = %d, want 2", len(matches))
	}
}

func TestCollection_DimensionMismatchStoresNothing(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	c := newTestCollection(t, idx, 3)

	ids, err := c.Upsert(ctx, "d", []models.EmbeddedChunk{chunk("ok", 1, 0, 0), chunk("bad", 1, 0)}, nil, "")
	var dimErr *apperr.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
	if dimErr.ChunkIndex != 1 || dimErr.Want != 3 || dimErr.Got != 2 {
		t.Errorf("dimErr = %+v", dimErr)
	}
	if len(ids) != 0 || idx.Size() != 0 {
		t.Errorf("stored %d points", idx.Size())
	}

	if _, err := c.Search(ctx, []float32{1, 0}, 1, nil, nil); !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("search with wrong dims: %v", err)
	}
}

func TestCollection_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, NewMemoryIndex(), 2)
	if _, err := c.Search(ctx, []float32{1, 0}, 0, nil, nil); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("limit 0: %v", err)
	}
	if _, err := c.Upsert(ctx, "", nil, nil, ""); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("empty document id: %v", err)
	}
	nested := map[string]interface{}{"tags": []string{"a"}}
	if _, err := c.Upsert(ctx, "d", []models.EmbeddedChunk{chunk("a", 1, 0)}, nested, ""); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("nested metadata: %v", err)
	}
	if _, err := NewCollection(ctx, NewMemoryIndex(), "", 2); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("empty name: %v", err)
	}
}

func TestCollection_PayloadPrecedence(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCollection(t, NewMemoryIndex(), 2, WithClock(func() time.Time { return fixed }))

	meta := map[string]interface{}{
		"document_id": "spoofed",
		"text":        "spoofed",
		"chunk_index": 99,
		"num_tokens":  7,
		"user_id":     "meta-user",
		"source":      "upload",
	}
	if _, err := c.Upsert(ctx, "real", []models.EmbeddedChunk{chunk("body", 1, 0)}, meta, "owner"); err != nil {
		t.Fatal(err)
	}
	points, err := c.Points(ctx, "real")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("points = %d", len(points))
	}
	p := points[0].Payload
	if p["document_id"] != "real" || p["text"] != "body" || p["chunk_index"] != 0 {
		t.Errorf("protected fields overridden: %v", p)
	}
	if p["num_tokens"] != 7 {
		t.Errorf("num_tokens = %v, want metadata override 7", p["num_tokens"])
	}
	if p["user_id"] != "owner" {
		t.Errorf("user_id = %v, want owner", p["user_id"])
	}
	if p["source"] != "upload" {
		t.Errorf("source = %v", p["source"])
	}
	if p["created_at"] != "2024-05-01T12:00:00Z" {
		t.Errorf("created_at = %v", p["created_at"])
	}
}

func TestCollection_SkipsChunksWithoutVector(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	c := newTestCollection(t, NewMemoryIndex(), 2, WithLogger(zap.New(core)))

	ids, err := c.Upsert(ctx, "d", []models.EmbeddedChunk{chunk("a", 1, 0), chunk("b"), chunk("c", 0, 1)}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %d, want 2", len(ids))
	}
	points, _ := c.Points(ctx, "d")
	if len(points) != 2 || points[0].ChunkIndex != 0 || points[1].ChunkIndex != 2 {
		t.Errorf("points = %+v", points)
	}
	if logs.FilterMessage("skipping chunk without vector").Len() != 1 {
		t.Errorf("expected one skip warning, got %d", logs.Len())
	}
}

// flakyIndex fails the Upsert call with the given ordinal.
type flakyIndex struct {
	*MemoryIndex
	failOn int
	calls  int
}

func (f *flakyIndex) Upsert(ctx context.Context, collection string, records []Record) error {
	f.calls++
	if f.calls == f.failOn {
		return fmt.Errorf("connection reset")
	}
	return f.MemoryIndex.Upsert(ctx, collection, records)
}

func TestCollection_StoreWriteErrorKeepsPrefix(t *testing.T) {
	ctx := context.Background()
	idx := &flakyIndex{MemoryIndex: NewMemoryIndex(), failOn: 3}
	c := newTestCollection(t, idx, 2, WithBatchSize(2))

	chunks := make([]models.EmbeddedChunk, 7)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("c%d", i), 1, float32(i))
	}
	ids, err := c.Upsert(ctx, "d", chunks, nil, "")
	var swErr *apperr.StoreWriteError
	if !errors.As(err, &swErr) {
		t.Fatalf("expected StoreWriteError, got %v", err)
	}
	if !errors.Is(err, apperr.ErrStoreWrite) {
		t.Error("StoreWriteError should match ErrStoreWrite")
	}
	if swErr.Batch != 2 || swErr.Written != 4 {
		t.Errorf("batch=%d written=%d, want 2 and 4", swErr.Batch, swErr.Written)
	}
	if len(ids) != 4 {
		t.Errorf("ids = %d, want 4", len(ids))
	}
	n, _ := c.Count(ctx, nil)
	if n != 4 {
		t.Errorf("stored = %d, want 4", n)
	}
}

func TestCollection_DuplicateUpsertKeepsBothCopies(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, NewMemoryIndex(), 2)
	chunks := []models.EmbeddedChunk{chunk("a", 1, 0)}
	first, _ := c.Upsert(ctx, "d", chunks, nil, "")
	second, _ := c.Upsert(ctx, "d", chunks, nil, "")
	if first[0] == second[0] {
		t.Error("point ids should be fresh on every upsert")
	}
	n, _ := c.Count(ctx, map[string]interface{}{"document_id": "d"})
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestStore_CollectionsShareIndex(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryIndex(), 2, "cv_embeddings")
	def, err := s.Collection(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if def.Name() != "cv_embeddings" {
		t.Errorf("default = %s", def.Name())
	}
	again, _ := s.Collection(ctx, "cv_embeddings")
	if again != def {
		t.Error("collection handles should be cached")
	}
	if _, err := s.Collection(ctx, "job_embeddings"); err != nil {
		t.Fatal(err)
	}
	names, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "cv_embeddings" || names[1] != "job_embeddings" {
		t.Errorf("names = %v", names)
	}
}

func TestStore_CountsIncludesForeignDimensions(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	if err := idx.EnsureCollection(ctx, "legacy", 3); err != nil {
		t.Fatal(err)
	}
	s := NewStore(idx, 2, "cv_embeddings")
	c, err := s.Collection(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Upsert(ctx, "d1", []models.EmbeddedChunk{chunk("a", 1, 0), chunk("b", 0, 1)}, nil, ""); err != nil {
		t.Fatal(err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts should not check dimensions: %v", err)
	}
	if counts["cv_embeddings"] != 2 || counts["legacy"] != 0 || len(counts) != 2 {
		t.Errorf("counts = %v", counts)
	}
}
