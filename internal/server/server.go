// Package server provides the HTTP API for jobmatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/indexer"
	"github.com/hyperjump/jobmatch/internal/search"
	"github.com/hyperjump/jobmatch/internal/storage"
	"github.com/hyperjump/jobmatch/internal/watcher"
)

// Server is the HTTP server for the jobmatch API.
type Server struct {
	engine     *search.Engine
	indexer    *indexer.Indexer
	ledger     storage.Ledger // optional
	watch      WatchService   // optional
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// WatchService is the directory watcher as seen by the API.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
	Stats() watcher.Stats
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLedger enables the run endpoints and ledger counts in status.
func WithLedger(l storage.Ledger) ServerOption {
	return func(s *Server) { s.ledger = l }
}

// WithWatcher enables the watch directory endpoints. When configPath is
// set, directory changes are saved back to the config file.
func WithWatcher(w WatchService, configPath string) ServerOption {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, idx *indexer.Indexer, cfg *config.Config, logger *zap.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:  engine,
		indexer: idx,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", s.handleIndexDocument)
		r.Get("/collections", s.handleListCollections)
		r.Get("/collections/{collection}/documents/{id}", s.handleGetDocument)
		r.Delete("/collections/{collection}/documents/{id}", s.handleDeleteDocument)
		r.Post("/search", s.handleSearch)
		r.Post("/match", s.handleMatch)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
