package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/embedding"
	"github.com/hyperjump/jobmatch/internal/indexer"
	"github.com/hyperjump/jobmatch/internal/models"
	"github.com/hyperjump/jobmatch/internal/search"
	"github.com/hyperjump/jobmatch/internal/storage"
	"github.com/hyperjump/jobmatch/internal/vector"
	"github.com/hyperjump/jobmatch/internal/watcher"
	"github.com/hyperjump/jobmatch/pkg/utils"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockWatchService) Stats() watcher.Stats { return watcher.Stats{Indexed: 3} }

type unavailableEmbedder struct{ *embedding.MockEmbedder }

func (unavailableEmbedder) EmbedBatch(context.Context, []string, embedding.TaskType) ([][]float32, error) {
	return nil, errors.New("connection refused")
}

func newTestServer(t *testing.T, embedder embedding.Embedder, opts ...ServerOption) (*Server, http.Handler) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "runs.db")
	if embedder == nil {
		embedder = embedding.NewMockEmbedder(32)
	}
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })
	client := embedding.NewClient(embedder)
	store := vector.NewStore(vector.NewMemoryIndex(), embedder.Dimensions(), cfg.Vector.Collection)
	idx, err := indexer.NewIndexer(client, store, cfg, indexer.WithLedger(ledger))
	if err != nil {
		t.Fatal(err)
	}
	engine := search.NewEngine(client, store, &cfg.Search)
	opts = append([]ServerOption{WithLedger(ledger)}, opts...)
	srv := NewServer(engine, idx, cfg, zap.NewNop(), opts...)
	return srv, srv.Router()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestIndexSearchDeleteFlow(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/api/v1/documents", models.IndexRequest{
		DocumentID: "cv1",
		Text:       "Python developer with 5 years experience in machine learning and SQL.",
		OwnerID:    "u1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("index status = %d: %s", w.Code, w.Body.String())
	}
	var res models.IndexResult
	decode(t, w, &res)
	if res.DocumentID != "cv1" || len(res.PointIDs) == 0 || res.RunID == "" {
		t.Fatalf("index result = %+v", res)
	}

	w = do(t, h, http.MethodPost, "/api/v1/search", models.SearchQuery{
		Query:  "Python developer with 5 years experience in machine learning and SQL.",
		Filter: map[string]interface{}{"user_id": "u1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decode(t, w, &resp)
	if len(resp.Matches) != 1 || resp.Matches[0].ID != res.PointIDs[0] {
		t.Errorf("search response = %+v", resp)
	}

	w = do(t, h, http.MethodGet, "/api/v1/collections/cv_embeddings/documents/cv1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var doc struct {
		Chunks    []models.StoredChunk `json:"chunks"`
		LatestRun *models.IndexRun     `json:"latest_run"`
	}
	decode(t, w, &doc)
	if len(doc.Chunks) != len(res.PointIDs) || doc.LatestRun == nil || doc.LatestRun.ID != res.RunID {
		t.Errorf("document = %+v", doc)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs/"+res.RunID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("run status = %d", w.Code)
	}
	var run struct {
		Run *models.IndexRun `json:"run"`
	}
	decode(t, w, &run)
	if run.Run.Status != models.RunSucceeded {
		t.Errorf("run = %+v", run.Run)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/collections/cv_embeddings/documents/cv1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	var del struct {
		Points int `json:"points"`
	}
	decode(t, w, &del)
	if del.Points != len(res.PointIDs) {
		t.Errorf("deleted %d points, want %d", del.Points, len(res.PointIDs))
	}
	if w := do(t, h, http.MethodGet, "/api/v1/collections/cv_embeddings/documents/cv1", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestIndexReplace(t *testing.T) {
	srv, h := newTestServer(t, nil)
	req := models.IndexRequest{DocumentID: "job1", Collection: "job_embeddings", Text: "Go engineer for search systems"}
	for i := 0; i < 2; i++ {
		if w := do(t, h, http.MethodPost, "/api/v1/documents?replace=true", req); w.Code != http.StatusCreated {
			t.Fatalf("status = %d", w.Code)
		}
	}
	coll, _ := srv.indexer.Store().Collection(context.Background(), "job_embeddings")
	n, _ := coll.Count(context.Background(), nil)
	if n != 1 {
		t.Errorf("points after replace = %d, want 1", n)
	}
}

func TestMatchEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	do(t, h, http.MethodPost, "/api/v1/documents", models.IndexRequest{
		DocumentID: "cv1", Text: "golang kubernetes backend engineer",
	})
	do(t, h, http.MethodPost, "/api/v1/documents", models.IndexRequest{
		DocumentID: "job1", Collection: "job_embeddings", Text: "Backend Engineer: golang kubernetes",
	})

	w := do(t, h, http.MethodPost, "/api/v1/match", models.MatchQuery{
		DocumentID: "cv1", SourceCollection: "cv_embeddings", TargetCollection: "job_embeddings",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decode(t, w, &resp)
	if len(resp.Matches) != 1 || resp.Matches[0].DocumentID() != "job1" {
		t.Errorf("matches = %+v", resp.Matches)
	}

	w = do(t, h, http.MethodPost, "/api/v1/match", models.MatchQuery{
		DocumentID: "nobody", SourceCollection: "cv_embeddings", TargetCollection: "job_embeddings",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown source status = %d", w.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	_, h := newTestServer(t, nil)
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"empty query", http.MethodPost, "/api/v1/search", models.SearchQuery{}, http.StatusBadRequest},
		{"negative top_k", http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "x", TopK: -1}, http.StatusBadRequest},
		{"no text", http.MethodPost, "/api/v1/documents", models.IndexRequest{DocumentID: "d", Text: "   "}, http.StatusUnprocessableEntity},
		{"path refused", http.MethodPost, "/api/v1/documents", models.IndexRequest{Path: "/etc/passwd"}, http.StatusBadRequest},
		{"bad overlap", http.MethodPost, "/api/v1/documents", models.IndexRequest{Text: "abc", ChunkSize: 5, ChunkOverlap: utils.IntPtr(5)}, http.StatusBadRequest},
		{"unknown run", http.MethodGet, "/api/v1/runs/missing", nil, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/v1/runs?limit=x", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.InvalidParameter("x"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", apperr.ErrNoText), http.StatusUnprocessableEntity},
		{&apperr.DimensionError{Want: 4, Got: 3, ChunkIndex: -1}, http.StatusConflict},
		{apperr.Unavailable(errors.New("down")), http.StatusServiceUnavailable},
		{&apperr.StoreWriteError{Err: errors.New("timeout")}, http.StatusBadGateway},
		{&apperr.StageError{Stage: apperr.StageStored, Err: &apperr.StoreWriteError{Err: errors.New("x")}}, http.StatusBadGateway},
		{storage.ErrRunNotFound, http.StatusNotFound},
		{search.ErrDocumentNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSearchEmbeddingUnavailable(t *testing.T) {
	_, h := newTestServer(t, unavailableEmbedder{embedding.NewMockEmbedder(32)})
	w := do(t, h, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "python"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	var out errorResponse
	decode(t, w, &out)
	if out.Code != "embedding_unavailable" {
		t.Errorf("code = %q", out.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil, WithWatcher(&mockWatchService{dirs: []string{"/tmp/inbox"}}, ""))
	do(t, h, http.MethodPost, "/api/v1/documents", models.IndexRequest{DocumentID: "cv1", Text: "data engineer spark"})

	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Collections map[string]int             `json:"collections"`
		Runs        map[models.RunStatus]int64 `json:"runs"`
		Watch       struct {
			Directories []string      `json:"directories"`
			Stats       watcher.Stats `json:"stats"`
		} `json:"watch"`
		Config map[string]interface{} `json:"config"`
	}
	decode(t, w, &out)
	if out.Collections["cv_embeddings"] != 1 {
		t.Errorf("collections = %v", out.Collections)
	}
	if out.Runs[models.RunSucceeded] != 1 {
		t.Errorf("runs = %v", out.Runs)
	}
	if len(out.Watch.Directories) != 1 || out.Watch.Stats.Indexed != 3 {
		t.Errorf("watch = %+v", out.Watch)
	}
	if out.Config["embedding_provider"] != "gemini" {
		t.Errorf("config = %v", out.Config)
	}
}

func TestStatusEndpoint_ForeignDimensionCollection(t *testing.T) {
	srv, h := newTestServer(t, nil)
	if err := srv.indexer.Store().Index().EnsureCollection(context.Background(), "legacy_384", 384); err != nil {
		t.Fatal(err)
	}
	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Collections map[string]int `json:"collections"`
	}
	decode(t, w, &out)
	if n, ok := out.Collections["legacy_384"]; !ok || n != 0 {
		t.Errorf("collections = %v", out.Collections)
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestWatchDirectories(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	mock := &mockWatchService{dirs: []string{"/tmp/docs"}}
	srv, h := newTestServer(t, nil, WithWatcher(mock, cfgPath))

	w := do(t, h, http.MethodGet, "/api/v1/watch/directories", nil)
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/docs" {
		t.Errorf("directories = %v", out.Directories)
	}

	w = do(t, h, http.MethodPost, "/api/v1/watch/directories", watchAddRequest{Path: dir})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 2 {
		t.Errorf("dirs after add = %v", mock.dirs)
	}
	if len(srv.config.Watch.Directories) != 2 {
		t.Errorf("config not updated: %v", srv.config.Watch.Directories)
	}
	loaded, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("persisted config: %v", err)
	}
	if len(loaded.Watch.Directories) != 2 {
		t.Errorf("persisted directories = %v", loaded.Watch.Directories)
	}

	if w := do(t, h, http.MethodPost, "/api/v1/watch/directories", watchAddRequest{Path: filepath.Join(dir, "missing")}); w.Code != http.StatusNotFound {
		t.Errorf("missing dir status = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/watch/directories", watchAddRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty path status = %d", w.Code)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d", w.Code)
	}
	if len(mock.dirs) != 1 {
		t.Errorf("dirs after remove = %v", mock.dirs)
	}
}

func TestWatchNotEnabled(t *testing.T) {
	_, h := newTestServer(t, nil)
	if w := do(t, h, http.MethodGet, "/api/v1/watch/directories", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d", w.Code)
	}
}
