// Package indexer runs documents through the extract, chunk, embed and
// store pipeline and keeps the run ledger.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/chunker"
	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/docid"
	"github.com/hyperjump/jobmatch/internal/embedding"
	"github.com/hyperjump/jobmatch/internal/extract"
	"github.com/hyperjump/jobmatch/internal/models"
	"github.com/hyperjump/jobmatch/internal/storage"
	"github.com/hyperjump/jobmatch/internal/vector"
)

// Ledger event kinds.
const (
	EventBatchFailure = "embedding_batch_failure"
	EventChunkSkipped = "chunk_skipped"
	EventStageFailure = "stage_failure"
)

// Indexer turns documents into points in a vector collection.
//
// IndexDocument is additive: indexing the same document_id twice stores
// both copies. Use Reindex to replace a document. Writes for one
// document_id must not run concurrently.
type Indexer struct {
	embedder       *embedding.Client
	store          *vector.Store
	tokenizer      chunker.Tokenizer
	chunking       config.ChunkingConfig
	batchSize      int
	onBatchFailure string
	csvProfiles    map[string]config.CSVProfile
	extractor      *extract.Extractor
	ledger         storage.Ledger // optional
	logger         *zap.Logger    // optional
	newRunID       func() string
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for pipeline progress and degraded batches.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithLedger records every run and failure event in l.
func WithLedger(l storage.Ledger) IndexerOption {
	return func(idx *Indexer) { idx.ledger = l }
}

// WithTokenizer overrides the tokenizer selected by the chunking config.
func WithTokenizer(t chunker.Tokenizer) IndexerOption {
	return func(idx *Indexer) { idx.tokenizer = t }
}

// WithExtractor overrides the file extractor.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer writing through store with vectors from embedder.
// Chunking defaults, the batch failure policy and CSV profiles come from cfg.
func NewIndexer(embedder *embedding.Client, store *vector.Store, cfg *config.Config, opts ...IndexerOption) (*Indexer, error) {
	idx := &Indexer{
		embedder:       embedder,
		store:          store,
		chunking:       cfg.Chunking,
		batchSize:      cfg.Embedding.BatchSize,
		onBatchFailure: cfg.Embedding.OnBatchFailure,
		csvProfiles:    cfg.CSV.Profiles,
		extractor:      extract.NewExtractor(),
		newRunID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.tokenizer == nil {
		tok, err := chunker.NewTokenizer(cfg.Chunking.Tokenizer)
		if err != nil {
			return nil, fmt.Errorf("failed to create tokenizer: %w", err)
		}
		idx.tokenizer = tok
	}
	if idx.onBatchFailure == "" {
		idx.onBatchFailure = config.OnFailureZeroVector
	}
	if idx.onBatchFailure != config.OnFailureZeroVector && idx.onBatchFailure != config.OnFailureSkip {
		return nil, apperr.InvalidParameter("unknown batch failure policy %q", idx.onBatchFailure)
	}
	return idx, nil
}

// Store returns the vector store the indexer writes to.
func (idx *Indexer) Store() *vector.Store { return idx.store }

type params struct {
	chunkSize, chunkOverlap, batchSize int
}

func (idx *Indexer) resolve(req *models.IndexRequest) params {
	p := params{chunkSize: req.ChunkSize, chunkOverlap: idx.chunking.OverlapOrDefault(), batchSize: req.BatchSize}
	if p.chunkSize == 0 {
		p.chunkSize = idx.chunking.ChunkSize
	}
	if req.ChunkOverlap != nil {
		p.chunkOverlap = *req.ChunkOverlap
	}
	if p.batchSize == 0 {
		p.batchSize = idx.batchSize
	}
	return p
}

// IndexDocument runs one document through Extracted → Chunked → Embedded →
// Stored. req.Text is used as-is; when empty, req.Path is extracted. A
// failing stage aborts the rest and returns *apperr.StageError naming it.
//
// Embedding batch failures do not abort: under the zero_vector policy the
// affected chunks are stored with zero vectors and listed in
// DegradedChunks, under skip they are left out and listed in FailedChunks.
// If storing fails part way, PointIDs holds the IDs that were written.
func (idx *Indexer) IndexDocument(ctx context.Context, req *models.IndexRequest) (*models.IndexResult, error) {
	start := time.Now()
	if req == nil {
		return nil, apperr.InvalidParameter("index request cannot be nil")
	}
	if req.Text == "" && req.Path == "" {
		return nil, apperr.InvalidParameter("either text or path is required")
	}
	p := idx.resolve(req)
	if p.batchSize < 0 {
		return nil, apperr.InvalidParameter("batch_size must be positive, got %d", p.batchSize)
	}
	chk, err := chunker.NewChunker(idx.tokenizer, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateMetadata(req.Metadata); err != nil {
		return nil, apperr.InvalidParameter("%v", err)
	}
	documentID := req.DocumentID
	if documentID == "" {
		if req.Path != "" {
			documentID = docid.FromPath(req.Path)
		} else {
			documentID = uuid.NewString()
		}
	}
	coll, err := idx.store.Collection(ctx, req.Collection)
	if err != nil {
		return nil, err
	}

	source := "text"
	if req.Text == "" {
		source = req.Path
	}
	run := idx.beginRun(ctx, documentID, coll.Name(), source)
	result := &models.IndexResult{DocumentID: documentID, Collection: coll.Name(), RunID: run.ID}
	fail := func(stage apperr.Stage, err error) (*models.IndexResult, error) {
		stageErr := &apperr.StageError{DocumentID: documentID, Stage: stage, Err: err}
		idx.recordFailure(ctx, run, stage, err)
		run.Stage = string(stage)
		run.Status = models.RunFailed
		run.ChunkCount = result.ChunkCount
		run.PointCount = len(result.PointIDs)
		run.Error = err.Error()
		idx.finishRun(ctx, run)
		result.Duration = time.Since(start).Milliseconds()
		return result, stageErr
	}

	// Extracted
	text := req.Text
	if text == "" {
		text, err = idx.extractor.Extract(req.Path)
		if err != nil {
			return fail(apperr.StageExtracted, err)
		}
		if idx.chunking.NormalizeOrDefault() {
			text = Preprocess(text)
		}
	}
	if strings.TrimSpace(text) == "" {
		return fail(apperr.StageExtracted, apperr.ErrNoText)
	}

	// Chunked
	chunks := chk.Chunk(text)
	result.ChunkCount = len(chunks)
	if len(chunks) == 0 {
		return fail(apperr.StageChunked, apperr.ErrNoText)
	}
	if idx.logger != nil {
		idx.logger.Debug("document chunked",
			zap.String("document_id", documentID),
			zap.Int("chunks", len(chunks)),
			zap.String("tokenizer", idx.tokenizer.Name()))
	}

	// Embedded
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := idx.embedder.EmbedDocuments(ctx, texts, p.batchSize)
	if err != nil {
		return fail(apperr.StageEmbedded, err)
	}
	embedded := make([]models.EmbeddedChunk, len(chunks))
	for i, ch := range chunks {
		embedded[i] = models.EmbeddedChunk{Chunk: ch, Vector: embeddings.Vectors[i]}
	}
	for _, f := range embeddings.Failures {
		idx.recordEvent(ctx, run, EventBatchFailure, apperr.StageEmbedded, f.Batch, f.Start, f.Error())
	}
	if degraded := embeddings.DegradedIndexes(); len(degraded) > 0 {
		if idx.onBatchFailure == config.OnFailureSkip {
			for _, i := range degraded {
				embedded[i].Vector = nil
				idx.recordEvent(ctx, run, EventChunkSkipped, apperr.StageEmbedded, -1, i, "embedding unavailable, chunk not stored")
			}
			result.FailedChunks = degraded
		} else {
			result.DegradedChunks = degraded
		}
	}

	// Stored
	ids, err := coll.Upsert(ctx, documentID, embedded, req.Metadata, req.OwnerID)
	result.PointIDs = ids
	if err != nil {
		return fail(apperr.StageStored, err)
	}

	run.Stage = string(apperr.StageStored)
	run.Status = models.RunSucceeded
	if len(embeddings.Failures) > 0 {
		run.Status = models.RunDegraded
	}
	run.ChunkCount = result.ChunkCount
	run.PointCount = len(ids)
	run.DegradedChunks = len(result.DegradedChunks) + len(result.FailedChunks)
	idx.finishRun(ctx, run)
	result.Duration = time.Since(start).Milliseconds()

	if idx.logger != nil {
		idx.logger.Info("document indexed",
			zap.String("document_id", documentID),
			zap.String("collection", coll.Name()),
			zap.Int("chunks", result.ChunkCount),
			zap.Int("points", len(ids)),
			zap.Int("degraded", run.DegradedChunks),
			zap.Int64("duration_ms", result.Duration))
	}
	return result, nil
}

// Reindex replaces a document: its existing points are deleted before it
// is indexed again. The document ID is required, or derived from req.Path.
func (idx *Indexer) Reindex(ctx context.Context, req *models.IndexRequest) (*models.IndexResult, error) {
	if req == nil {
		return nil, apperr.InvalidParameter("index request cannot be nil")
	}
	r := *req
	if r.DocumentID == "" {
		if r.Path == "" {
			return nil, apperr.InvalidParameter("document_id is required to reindex")
		}
		r.DocumentID = docid.FromPath(r.Path)
	}
	removed, err := idx.DeleteDocument(ctx, r.Collection, r.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove previous version: %w", err)
	}
	if idx.logger != nil && removed > 0 {
		idx.logger.Debug("replaced previous points",
			zap.String("document_id", r.DocumentID),
			zap.Int("removed", removed))
	}
	return idx.IndexDocument(ctx, &r)
}

// DeleteDocument removes every point of documentID from collection (the
// default collection when empty) and returns how many were removed.
// Deleting an unknown document returns 0 and no error.
func (idx *Indexer) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	if documentID == "" {
		return 0, apperr.InvalidParameter("document_id cannot be empty")
	}
	coll, err := idx.store.Collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	n, err := coll.Delete(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if idx.ledger != nil && n > 0 {
		if _, err := idx.ledger.MarkDeleted(ctx, coll.Name(), documentID); err != nil && idx.logger != nil {
			idx.logger.Warn("failed to mark runs deleted", zap.String("document_id", documentID), zap.Error(err))
		}
	}
	if idx.logger != nil {
		idx.logger.Debug("document deleted",
			zap.String("document_id", documentID),
			zap.String("collection", coll.Name()),
			zap.Int("points", n))
	}
	return n, nil
}

func (idx *Indexer) beginRun(ctx context.Context, documentID, collection, source string) *models.IndexRun {
	run := &models.IndexRun{
		ID:         idx.newRunID(),
		DocumentID: documentID,
		Collection: collection,
		Source:     source,
		Status:     models.RunRunning,
		StartedAt:  time.Now().UTC(),
	}
	if idx.ledger == nil {
		return run
	}
	if err := idx.ledger.CreateRun(ctx, run); err != nil && idx.logger != nil {
		idx.logger.Warn("failed to record run", zap.String("document_id", documentID), zap.Error(err))
	}
	return run
}

func (idx *Indexer) finishRun(ctx context.Context, run *models.IndexRun) {
	if idx.ledger == nil {
		return
	}
	if err := idx.ledger.FinishRun(ctx, run); err != nil && idx.logger != nil {
		idx.logger.Warn("failed to finish run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// recordFailure logs a stage failure with the batch and chunk position
// when the error carries one.
func (idx *Indexer) recordFailure(ctx context.Context, run *models.IndexRun, stage apperr.Stage, err error) {
	batch, chunk := -1, -1
	var sw *apperr.StoreWriteError
	var dim *apperr.DimensionError
	switch {
	case errors.As(err, &sw):
		batch = sw.Batch
		chunk = sw.Written
	case errors.As(err, &dim):
		chunk = dim.ChunkIndex
	}
	if idx.logger != nil {
		idx.logger.Error("indexing failed",
			zap.String("document_id", run.DocumentID),
			zap.String("stage", string(stage)),
			zap.Int("batch", batch),
			zap.Int("chunk", chunk),
			zap.Error(err))
	}
	idx.recordEvent(ctx, run, EventStageFailure, stage, batch, chunk, err.Error())
}

func (idx *Indexer) recordEvent(ctx context.Context, run *models.IndexRun, kind string, stage apperr.Stage, batch, chunk int, msg string) {
	if idx.ledger == nil {
		return
	}
	event := &models.IndexEvent{
		RunID:      run.ID,
		DocumentID: run.DocumentID,
		Kind:       kind,
		Stage:      string(stage),
		BatchIndex: batch,
		ChunkIndex: chunk,
		Message:    msg,
	}
	if err := idx.ledger.RecordEvent(ctx, event); err != nil && idx.logger != nil {
		idx.logger.Warn("failed to record event", zap.String("run_id", run.ID), zap.Error(err))
	}
}
