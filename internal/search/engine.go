// Package search answers similarity queries against the vector collections.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/embedding"
	"github.com/hyperjump/jobmatch/internal/models"
	"github.com/hyperjump/jobmatch/internal/vector"
)

// ErrDocumentNotFound is returned by MatchDocument when the source document has no points.
var ErrDocumentNotFound = errors.New("document not found")

// matchCandidates is how many chunk hits per requested document MatchDocument
// fetches before collapsing them to one hit per document.
const matchCandidates = 4

// Engine runs similarity search. Queries are embedded with the retrieval
// query task; an embedding failure fails the query rather than searching
// with a placeholder vector.
type Engine struct {
	embedder *embedding.Client
	store    *vector.Store
	config   *config.SearchConfig
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query timings.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(embedder *embedding.Client, store *vector.Store, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{embedder: embedder, store: store, config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindSimilar embeds query.Query and returns the closest chunks in
// query.Collection, best first.
func (e *Engine) FindSimilar(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}
	coll, err := e.store.Collection(ctx, query.Collection)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedder.EmbedQuery(ctx, query.Query)
	if err != nil {
		return nil, err
	}
	matches, err := coll.Search(ctx, vec, query.TopK, query.Filter, query.ScoreThreshold)
	if err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{
		Matches:    matches,
		Total:      len(matches),
		QueryTime:  time.Since(startTime).Milliseconds(),
		Query:      query.Query,
		Collection: coll.Name(),
	}
	if e.logger != nil {
		e.logger.Debug("search",
			zap.String("collection", coll.Name()),
			zap.Int("top_k", query.TopK),
			zap.Int("matches", resp.Total),
			zap.Int64("query_time_ms", resp.QueryTime))
	}
	return resp, nil
}

// MatchDocument finds the documents in query.TargetCollection closest to
// a document already stored in query.SourceCollection, such as jobs for a
// CV. The stored chunk texts are joined in chunk order and embedded as one
// query. Each target document appears once, represented by its best chunk;
// the source document itself is never returned.
func (e *Engine) MatchDocument(ctx context.Context, query *models.MatchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessMatch(query, e.config); err != nil {
		return nil, err
	}
	source, err := e.store.Collection(ctx, query.SourceCollection)
	if err != nil {
		return nil, err
	}
	target, err := e.store.Collection(ctx, query.TargetCollection)
	if err != nil {
		return nil, err
	}
	chunks, err := source.Points(ctx, query.DocumentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, query.DocumentID, source.Name())
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	text := strings.Join(texts, " ")

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	hits, err := target.Search(ctx, vec, query.TopK*matchCandidates, query.Filter, query.ScoreThreshold)
	if err != nil {
		return nil, err
	}
	var exclude []string
	if source.Name() == target.Name() {
		exclude = append(exclude, query.DocumentID)
	}
	matches := BestPerDocument(hits, exclude...)
	total := len(matches)
	if len(matches) > query.TopK {
		matches = matches[:query.TopK]
	}
	resp := &models.SearchResponse{
		Matches:    matches,
		Total:      total,
		QueryTime:  time.Since(startTime).Milliseconds(),
		Query:      query.DocumentID,
		Collection: target.Name(),
	}
	if e.logger != nil {
		e.logger.Debug("match",
			zap.String("document_id", query.DocumentID),
			zap.String("source", source.Name()),
			zap.String("target", target.Name()),
			zap.Int("matches", len(matches)),
			zap.Int64("query_time_ms", resp.QueryTime))
	}
	return resp, nil
}
