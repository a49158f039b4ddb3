package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/models"
	"github.com/hyperjump/jobmatch/internal/storage"
)

// indexResponse is returned by the index endpoint. Error is set when the
// pipeline stopped part way; the result then reports what was stored.
type indexResponse struct {
	*models.IndexResult
	Error string `json:"error,omitempty"`
	Stage string `json:"stage,omitempty"`
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req models.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path != "" {
		s.respondError(w, http.StatusBadRequest, "path is not accepted over HTTP; add a watch directory instead")
		return
	}
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	s.logger.Debug("index document request",
		zap.String("document_id", req.DocumentID),
		zap.String("collection", req.Collection),
		zap.Bool("replace", replace))

	index := s.indexer.IndexDocument
	if replace {
		index = s.indexer.Reindex
	}
	res, err := index(r.Context(), &req)
	if err != nil {
		s.logger.Error("indexing failed", zap.String("document_id", req.DocumentID), zap.Error(err))
		var stageErr *apperr.StageError
		if res != nil && errors.As(err, &stageErr) {
			s.respondJSON(w, statusFor(err), indexResponse{IndexResult: res, Error: err.Error(), Stage: string(stageErr.Stage)})
			return
		}
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, indexResponse{IndexResult: res})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.indexer.Store().List(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"collections": names})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")
	coll, err := s.indexer.Store().Collection(r.Context(), collection)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	chunks, err := coll.Points(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if len(chunks) == 0 {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	resp := map[string]interface{}{
		"document_id": id,
		"collection":  coll.Name(),
		"chunks":      chunks,
	}
	if s.ledger != nil {
		if run, err := s.ledger.LatestRun(r.Context(), coll.Name(), id); err == nil {
			resp["latest_run"] = run
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("collection", collection), zap.String("document_id", id))
	n, err := s.indexer.DeleteDocument(r.Context(), collection, id)
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "document_id": id, "points": n})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.TopK))
	response, err := s.engine.FindSimilar(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var query models.MatchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("match request",
		zap.String("document_id", query.DocumentID),
		zap.String("source", query.SourceCollection),
		zap.String("target", query.TargetCollection))
	response, err := s.engine.MatchDocument(r.Context(), &query)
	if err != nil {
		s.logger.Error("match failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusNotImplemented, "run ledger not enabled")
		return
	}
	q := r.URL.Query()
	filter := storage.RunFilter{
		DocumentID: q.Get("document_id"),
		Collection: q.Get("collection"),
		Status:     models.RunStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	runs, err := s.ledger.ListRuns(r.Context(), filter)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusNotImplemented, "run ledger not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.ledger.GetRun(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	events, err := s.ledger.ListEvents(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"run": run, "events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := s.indexer.Store()
	collections, err := store.Counts(ctx)
	if err != nil {
		s.logger.Error("status: count points failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	resp := map[string]interface{}{
		"collections":        collections,
		"default_collection": store.DefaultCollection(),
		"vector_index_type":  store.Index().Type(),
	}
	if s.ledger != nil {
		runs, err := s.ledger.CountRuns(ctx)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		events, err := s.ledger.CountEvents(ctx)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		resp["runs"] = runs
		resp["failure_events"] = events
	}
	if s.watch != nil {
		resp["watch"] = map[string]interface{}{
			"directories": s.watch.Directories(),
			"stats":       s.watch.Stats(),
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"on_batch_failure":     s.config.Embedding.OnBatchFailure,
			"chunk_size":           s.config.Chunking.ChunkSize,
			"chunk_overlap":        s.config.Chunking.OverlapOrDefault(),
			"tokenizer":            s.config.Chunking.Tokenizer,
			"database_path":        s.config.Storage.DatabasePath,
		}
		if diskBytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath, s.config.Storage.SnapshotPath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
