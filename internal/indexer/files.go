package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/docid"
	"github.com/hyperjump/jobmatch/internal/extract"
	"github.com/hyperjump/jobmatch/internal/models"
)

const (
	metaKeySourcePath = "source_path"
	metaKeyFileName   = "file_name"
)

// DirectorySummary reports the outcome of IndexDirectory.
type DirectorySummary struct {
	Indexed int      `json:"indexed"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Points  int      `json:"points"`
	Errors  []string `json:"errors,omitempty"`
}

// IndexFile replaces the document extracted from path. Fields of tmpl
// (collection, owner, metadata, sizes) apply; tmpl may be nil. The
// document ID is derived from the absolute path unless tmpl sets one, so
// indexing the same file again replaces its points.
func (idx *Indexer) IndexFile(ctx context.Context, path string, tmpl *models.IndexRequest) (*models.IndexResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, apperr.InvalidParameter("not a regular file: %s", absPath)
	}
	if !extract.Supported(filepath.Ext(absPath)) {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, filepath.Base(absPath))
	}

	var req models.IndexRequest
	if tmpl != nil {
		req = *tmpl
	}
	req.Text = ""
	req.Path = absPath
	if req.DocumentID == "" {
		req.DocumentID = docid.FromPath(absPath)
	}
	meta := make(map[string]interface{}, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta[metaKeySourcePath] = absPath
	meta[metaKeyFileName] = filepath.Base(absPath)
	req.Metadata = meta

	if idx.logger != nil {
		idx.logger.Debug("indexing file", zap.String("path", absPath), zap.String("document_id", req.DocumentID))
	}
	return idx.Reindex(ctx, &req)
}

// IndexDirectory walks dir and indexes every supported file whose
// extension is in allowedExts (all supported files when empty). A file
// that fails is logged and counted; the walk continues.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, recursive bool, allowedExts []string, tmpl *models.IndexRequest) (*DirectorySummary, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, apperr.InvalidParameter("not a directory: %s", absDir)
	}

	summary := &DirectorySummary{}
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if !extract.Supported(ext) || (len(allowedExts) > 0 && !ExtensionAllowed(ext, allowedExts)) {
			summary.Skipped++
			return nil
		}
		// Resolve symlinks so we only index regular files
		if fi, statErr := os.Stat(path); statErr != nil || !fi.Mode().IsRegular() {
			summary.Skipped++
			return nil
		}
		res, indexErr := idx.IndexFile(ctx, path, tmpl)
		if indexErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, indexErr))
			if idx.logger != nil {
				idx.logger.Warn("failed to index file", zap.String("path", path), zap.Error(indexErr))
			}
			return nil
		}
		summary.Indexed++
		summary.Points += len(res.PointIDs)
		return nil
	})
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and a leading dot.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
