package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/jobmatch/internal/models"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "sub", "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSQLiteLedger_RunLifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	run := &models.IndexRun{ID: "run1", DocumentID: "cv_1_abcd", Collection: "cv_embeddings", Source: "text"}
	if err := l.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.StartedAt.IsZero() || run.Status != models.RunRunning {
		t.Errorf("defaults not applied: %+v", run)
	}

	got, err := l.GetRun(ctx, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunRunning || got.FinishedAt != nil {
		t.Errorf("got %+v", got)
	}

	run.Status = models.RunDegraded
	run.Stage = "stored"
	run.ChunkCount = 4
	run.PointCount = 4
	run.DegradedChunks = 2
	if err := l.FinishRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, _ = l.GetRun(ctx, "run1")
	if got.Status != models.RunDegraded || got.ChunkCount != 4 || got.DegradedChunks != 2 || got.Stage != "stored" {
		t.Errorf("after finish: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}

	if _, err := l.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) = %v", err)
	}
	if err := l.FinishRun(ctx, &models.IndexRun{ID: "missing"}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun(missing) = %v", err)
	}
}

func TestSQLiteLedger_ListAndLatest(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	runs := []*models.IndexRun{
		{ID: "a", DocumentID: "d1", Collection: "cv", StartedAt: base},
		{ID: "b", DocumentID: "d1", Collection: "cv", StartedAt: base.Add(time.Minute)},
		{ID: "c", DocumentID: "d2", Collection: "job", StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		if err := l.CreateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	runs[0].Status = models.RunFailed
	_ = l.FinishRun(ctx, runs[0])

	latest, err := l.LatestRun(ctx, "cv", "d1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "b" {
		t.Errorf("latest = %s, want b", latest.ID)
	}

	all, err := l.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Errorf("all = %d runs, first %s", len(all), all[0].ID)
	}
	failed, _ := l.ListRuns(ctx, RunFilter{Status: models.RunFailed})
	if len(failed) != 1 || failed[0].ID != "a" {
		t.Errorf("failed = %+v", failed)
	}
	d1, _ := l.ListRuns(ctx, RunFilter{DocumentID: "d1", Collection: "cv", Limit: 1})
	if len(d1) != 1 {
		t.Errorf("limit not applied: %d", len(d1))
	}

	if _, err := l.LatestRun(ctx, "job", "d1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun in other collection = %v", err)
	}
}

func TestSQLiteLedger_Events(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_ = l.CreateRun(ctx, &models.IndexRun{ID: "r", DocumentID: "d", Collection: "cv"})

	events := []*models.IndexEvent{
		{RunID: "r", DocumentID: "d", Kind: "embedding_batch_failure", Stage: "embedded", BatchIndex: 1, ChunkIndex: 32, Message: "timeout"},
		{RunID: "r", DocumentID: "d", Kind: "stage_failure", Stage: "stored", BatchIndex: -1, ChunkIndex: -1, Message: "unavailable"},
	}
	for _, e := range events {
		if err := l.RecordEvent(ctx, e); err != nil {
			t.Fatal(err)
		}
		if e.ID == 0 {
			t.Error("event ID should be set")
		}
	}

	got, err := l.ListEvents(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d", len(got))
	}
	if got[0].BatchIndex != 1 || got[0].ChunkIndex != 32 || got[1].Kind != "stage_failure" {
		t.Errorf("events = %+v, %+v", got[0], got[1])
	}
	n, _ := l.CountEvents(ctx)
	if n != 2 {
		t.Errorf("CountEvents = %d", n)
	}
}

func TestSQLiteLedger_MarkDeletedAndCounts(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	done := &models.IndexRun{ID: "1", DocumentID: "d", Collection: "cv"}
	_ = l.CreateRun(ctx, done)
	done.Status = models.RunSucceeded
	_ = l.FinishRun(ctx, done)
	_ = l.CreateRun(ctx, &models.IndexRun{ID: "2", DocumentID: "d", Collection: "cv"})
	_ = l.CreateRun(ctx, &models.IndexRun{ID: "3", DocumentID: "other", Collection: "cv"})

	n, err := l.MarkDeleted(ctx, "cv", "d")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("marked %d, want 1 (running runs are left alone)", n)
	}

	counts, err := l.CountRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.RunDeleted] != 1 || counts[models.RunRunning] != 2 {
		t.Errorf("counts = %v", counts)
	}
}
