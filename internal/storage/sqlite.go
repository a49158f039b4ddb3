package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/jobmatch/internal/models"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the pipeline records events from a single goroutine per document.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_runs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		collection TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		chunk_count INTEGER NOT NULL DEFAULT 0,
		point_count INTEGER NOT NULL DEFAULT 0,
		degraded_chunks INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document ON index_runs(collection, document_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON index_runs(status);

	CREATE TABLE IF NOT EXISTS index_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		batch_index INTEGER NOT NULL DEFAULT -1,
		chunk_index INTEGER NOT NULL DEFAULT -1,
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES index_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON index_events(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

const runColumns = `id, document_id, collection, source, status, stage, chunk_count, point_count,
	degraded_chunks, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.IndexRun, error) {
	var run models.IndexRun
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.DocumentID, &run.Collection, &run.Source, &run.Status, &run.Stage,
		&run.ChunkCount, &run.PointCount, &run.DegradedChunks, &run.Error, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// CreateRun inserts a run. StartedAt and Status are filled when unset.
func (s *SQLiteLedger) CreateRun(ctx context.Context, run *models.IndexRun) error {
	if run.ID == "" || run.DocumentID == "" {
		return fmt.Errorf("run id and document id are required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_runs (id, document_id, collection, source, status, stage, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DocumentID, run.Collection, run.Source, run.Status, run.Stage, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stores the final status, stage, counts and error of a run.
func (s *SQLiteLedger) FinishRun(ctx context.Context, run *models.IndexRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE index_runs SET status = ?, stage = ?, chunk_count = ?, point_count = ?,
		 degraded_chunks = ?, error = ?, finished_at = ? WHERE id = ?`,
		run.Status, run.Stage, run.ChunkCount, run.PointCount, run.DegradedChunks, run.Error, *run.FinishedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *SQLiteLedger) GetRun(ctx context.Context, id string) (*models.IndexRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM index_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun returns the most recent run for a document in a collection.
func (s *SQLiteLedger) LatestRun(ctx context.Context, collection, documentID string) (*models.IndexRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM index_runs WHERE collection = ? AND document_id = ?
		 ORDER BY started_at DESC, rowid DESC LIMIT 1`, collection, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, collection, documentID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs matching filter, newest first.
func (s *SQLiteLedger) ListRuns(ctx context.Context, filter RunFilter) ([]*models.IndexRun, error) {
	var where []string
	var args []any
	if filter.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.Collection != "" {
		where = append(where, "collection = ?")
		args = append(args, filter.Collection)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	query := `SELECT ` + runColumns + ` FROM index_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.IndexRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkDeleted flags every finished run of a document as deleted and returns how many were updated.
func (s *SQLiteLedger) MarkDeleted(ctx context.Context, collection, documentID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE index_runs SET status = ? WHERE collection = ? AND document_id = ? AND status != ?`,
		models.RunDeleted, collection, documentID, models.RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark runs deleted: %w", err)
	}
	return result.RowsAffected()
}

// RecordEvent appends an event and sets its ID.
func (s *SQLiteLedger) RecordEvent(ctx context.Context, event *models.IndexEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO index_events (run_id, document_id, kind, stage, batch_index, chunk_index, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.DocumentID, event.Kind, event.Stage, event.BatchIndex, event.ChunkIndex, event.Message, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	event.ID, _ = result.LastInsertId()
	return nil
}

// ListEvents returns the events of a run in insertion order.
func (s *SQLiteLedger) ListEvents(ctx context.Context, runID string) ([]*models.IndexEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, document_id, kind, stage, batch_index, chunk_index, message, created_at
		 FROM index_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.IndexEvent
	for rows.Next() {
		var e models.IndexEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.DocumentID, &e.Kind, &e.Stage, &e.BatchIndex, &e.ChunkIndex, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// CountRuns returns the number of runs per status.
func (s *SQLiteLedger) CountRuns(ctx context.Context) (map[models.RunStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM index_runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[models.RunStatus]int64)
	for rows.Next() {
		var status models.RunStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountEvents returns the total number of recorded events.
func (s *SQLiteLedger) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_events`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
