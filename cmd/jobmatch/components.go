package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/embedding"
	"github.com/hyperjump/jobmatch/internal/indexer"
	"github.com/hyperjump/jobmatch/internal/search"
	"github.com/hyperjump/jobmatch/internal/storage"
	"github.com/hyperjump/jobmatch/internal/vector"
)

const defaultConfigPath = "/usr/local/etc/jobmatch/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml
// in the current directory is preferred if it exists, so commands run from a
// project directory pick up the project's config. Returns the config and the
// path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds initialized services.
type Components struct {
	Ledger       storage.Ledger
	Index        vector.Index
	Embedder     *embedding.Client
	Store        *vector.Store
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	snapshotPath string
	snapshotLock *vector.SnapshotLock
	logger       *zap.Logger
}

// snapshotLockWait bounds how long a command waits for another process
// (usually a running server) to release the memory index snapshot.
var snapshotLockWait = 10 * time.Second

// Close saves the memory index snapshot, when there is one, and releases
// every component.
func (c *Components) Close() {
	if snap, ok := c.Index.(vector.Snapshotter); ok && c.snapshotPath != "" {
		if err := snap.Save(c.snapshotPath); err != nil {
			c.logger.Warn("vector index save failed", zap.String("path", c.snapshotPath), zap.Error(err))
		}
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if err := c.snapshotLock.Unlock(); err != nil {
		c.logger.Warn("snapshot unlock failed", zap.Error(err))
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run ledger: %w", err)
	}
	c := &Components{Ledger: ledger, snapshotPath: cfg.Storage.SnapshotPath, logger: logger}

	c.Embedder, err = embedding.NewClientFromConfig(ctx, &cfg.Embedding, embedding.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	dims := c.Embedder.Dimensions()
	if dims <= 0 {
		dims = cfg.Embedding.Dimensions
	}

	if vector.IndexType(cfg.Vector.Type) == vector.IndexTypeMemory && c.snapshotPath != "" {
		c.snapshotLock, err = vector.LockSnapshot(ctx, c.snapshotPath, snapshotLockWait)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%w (stop the other jobmatch process, or use the running server with -server)", err)
		}
	}
	c.Index, err = vector.NewIndex(&cfg.Vector, cfg.Storage.SnapshotPath, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("type", c.Index.Type()),
		zap.String("embedder", c.Embedder.Name()),
		zap.Int("dimensions", dims))

	c.Store = vector.NewStore(c.Index, dims, cfg.Vector.Collection,
		vector.WithBatchSize(cfg.Vector.UpsertBatchSize),
		vector.WithLogger(logger))
	c.Engine = search.NewEngine(c.Embedder, c.Store, &cfg.Search, search.WithLogger(logger))
	c.Indexer, err = indexer.NewIndexer(c.Embedder, c.Store, cfg,
		indexer.WithLedger(ledger),
		indexer.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
