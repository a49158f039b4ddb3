package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/docid"
	"github.com/hyperjump/jobmatch/internal/indexer"
	"github.com/hyperjump/jobmatch/internal/models"
)

// IndexerSink applies file changes to one collection. Files are reindexed
// by path, so a rewritten file replaces its previous points.
type IndexerSink struct {
	Indexer    *indexer.Indexer
	Collection string
	OwnerID    string
	Logger     *zap.Logger
}

// IndexFile reindexes path.
func (s *IndexerSink) IndexFile(ctx context.Context, path string) error {
	res, err := s.Indexer.IndexFile(ctx, path, &models.IndexRequest{Collection: s.Collection, OwnerID: s.OwnerID})
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("indexed file",
			zap.String("path", path),
			zap.String("document_id", res.DocumentID),
			zap.Int("points", len(res.PointIDs)),
			zap.Int("degraded", len(res.DegradedChunks)))
	}
	return nil
}

// RemoveFile deletes the points of the document derived from path.
func (s *IndexerSink) RemoveFile(ctx context.Context, path string) error {
	id := docid.FromPath(path)
	n, err := s.Indexer.DeleteDocument(ctx, s.Collection, id)
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("removed file", zap.String("path", path), zap.String("document_id", id), zap.Int("points", n))
	}
	return nil
}
