package indexer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/docid"
	"github.com/hyperjump/jobmatch/internal/models"
)

// CSVOptions selects how a CSV file is imported. Profile names a
// configured profile ("cv", "job"); the other fields override it.
type CSVOptions struct {
	Profile         string
	Collection      string
	TextColumns     []string
	MetadataColumns []string
	OwnerID         string
	Limit           int
	ChunkSize       int
	ChunkOverlap    *int
	BatchSize       int
}

// CSVSummary reports the outcome of IndexCSV.
type CSVSummary struct {
	File        string   `json:"file"`
	Collection  string   `json:"collection"`
	Rows        int      `json:"rows"`
	Indexed     int      `json:"indexed"`
	Skipped     int      `json:"skipped"`
	Failed      int      `json:"failed"`
	Chunks      int      `json:"chunks"`
	Degraded    int      `json:"degraded"`
	DocumentIDs []string `json:"document_ids"`
	DurationMs  int64    `json:"duration_ms"`
}

func (idx *Indexer) csvProfile(opts CSVOptions) (config.CSVProfile, error) {
	var p config.CSVProfile
	if opts.Profile != "" {
		var ok bool
		p, ok = idx.csvProfiles[opts.Profile]
		if !ok {
			return p, apperr.InvalidParameter("unknown csv profile %q", opts.Profile)
		}
	}
	if opts.Collection != "" {
		p.Collection = opts.Collection
	}
	if len(opts.TextColumns) > 0 {
		p.TextColumns = opts.TextColumns
	}
	if len(opts.MetadataColumns) > 0 {
		p.MetadataColumns = opts.MetadataColumns
	}
	if len(p.TextColumns) == 0 {
		return p, apperr.InvalidParameter("csv import needs at least one text column")
	}
	return p, nil
}

// IndexCSV imports every row of a CSV file as its own document with ID
// <prefix>_<row>_<8 hex>. The text columns are joined with ": ", the
// metadata columns are copied into the payload with the source file name
// and row index. Rows whose text is shorter than the profile minimum are
// skipped; a row that fails to index is logged and counted. Only a file
// that cannot be read, or lacks a text column, fails the whole import.
func (idx *Indexer) IndexCSV(ctx context.Context, path string, opts CSVOptions) (*CSVSummary, error) {
	start := time.Now()
	profile, err := idx.csvProfile(opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv %s: %w", filepath.Base(path), apperr.ErrNoText)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range profile.TextColumns {
		if _, ok := columns[col]; !ok {
			return nil, apperr.InvalidParameter("text column %q not found in %s", col, filepath.Base(path))
		}
	}

	summary := &CSVSummary{File: filepath.Base(path), Collection: profile.Collection}
	for row := 0; opts.Limit <= 0 || row < opts.Limit; row++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read csv row %d: %w", row, err)
		}
		summary.Rows++

		text := rowText(record, columns, profile.TextColumns)
		if text == "" || len([]rune(text)) < profile.MinTextLength {
			summary.Skipped++
			if idx.logger != nil {
				idx.logger.Debug("skipping short csv row", zap.Int("row", row), zap.Int("length", len(text)))
			}
			continue
		}

		meta := map[string]interface{}{"source": summary.File, "row_index": row}
		for _, col := range profile.MetadataColumns {
			if i, ok := columns[col]; ok && i < len(record) {
				meta[col] = strings.TrimSpace(record[i])
			}
		}
		owner := opts.OwnerID
		if profile.OwnerColumn != "" {
			if i, ok := columns[profile.OwnerColumn]; ok && i < len(record) && record[i] != "" {
				owner = strings.TrimSpace(record[i])
			}
		}

		res, err := idx.IndexDocument(ctx, &models.IndexRequest{
			DocumentID:   docid.ForRow(profile.IDPrefix, row),
			Collection:   profile.Collection,
			Text:         text,
			Metadata:     meta,
			OwnerID:      owner,
			ChunkSize:    opts.ChunkSize,
			ChunkOverlap: opts.ChunkOverlap,
			BatchSize:    opts.BatchSize,
		})
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			if idx.logger != nil {
				idx.logger.Warn("failed to index csv row", zap.Int("row", row), zap.Error(err))
			}
			continue
		}
		summary.Indexed++
		summary.Collection = res.Collection
		summary.Chunks += len(res.PointIDs)
		summary.Degraded += len(res.DegradedChunks) + len(res.FailedChunks)
		summary.DocumentIDs = append(summary.DocumentIDs, res.DocumentID)
		if idx.logger != nil && summary.Indexed%10 == 0 {
			idx.logger.Info("csv import progress", zap.Int("rows", summary.Indexed), zap.Int("chunks", summary.Chunks))
		}
	}
	summary.DurationMs = time.Since(start).Milliseconds()
	return summary, nil
}

func rowText(record []string, columns map[string]int, textColumns []string) string {
	parts := make([]string, 0, len(textColumns))
	for _, col := range textColumns {
		i := columns[col]
		if i >= len(record) {
			continue
		}
		if s := strings.TrimSpace(record[i]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ": ")
}
