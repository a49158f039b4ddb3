// Package watcher keeps a collection in step with files on disk using
// fsnotify. Creates and writes are debounced per path and re-indexed;
// removals and renames delete the file's points.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/extract"
	"github.com/hyperjump/jobmatch/internal/indexer"
)

// DefaultDebounce is the quiet period after the last write before a file is indexed.
const DefaultDebounce = 400 * time.Millisecond

// Sink receives file changes.
type Sink interface {
	IndexFile(ctx context.Context, path string) error
	RemoveFile(ctx context.Context, path string) error
}

// Stats counts the changes applied since Start.
type Stats struct {
	Indexed int64 `json:"indexed"`
	Removed int64 `json:"removed"`
	Failed  int64 `json:"failed"`
}

// Watcher watches root directories and forwards matching file changes to a Sink.
type Watcher struct {
	sink       Sink
	roots      []string
	extensions []string
	recursive  bool
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	ctx        context.Context
	mu         sync.Mutex
	pending    map[string]*time.Timer
	rootPaths  map[string][]string // root -> directories added for it
	done       chan struct{}
	started    bool
	stopOnce   sync.Once
	indexed    atomic.Int64
	removed    atomic.Int64
	failed     atomic.Int64
	logger     *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for file events and sink failures.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions limits the watcher to files with these extensions. Without
// it every extension the extractor supports is watched.
func WithExtensions(exts []string) WatcherOption {
	return func(w *Watcher) { w.extensions = exts }
}

// NewWatcher creates a watcher over roots. Missing roots are created on Start.
func NewWatcher(sink Sink, roots []string, recursive bool, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		sink:      sink,
		roots:     append([]string(nil), roots...),
		recursive: recursive,
		debounce:  DefaultDebounce,
		ctx:       context.Background(),
		pending:   make(map[string]*time.Timer),
		rootPaths: make(map[string][]string),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Sink calls use ctx, and the watcher stops when
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	if w.logger != nil {
		w.logger.Info("watcher starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	}
	for i, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err == nil {
			root = abs
		}
		if err := w.addRootLocked(root); err != nil {
			_ = fw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
		w.roots[i] = filepath.Clean(root)
	}
	w.mu.Unlock()
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.Matches(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if w.Matches(path) {
			w.remove(path)
		}
	}
}

// handleNewDirectory watches a directory created or moved under a root
// and indexes the files already in it.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}
	if w.recursive {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if err := fw.Add(path); err != nil && w.logger != nil {
					w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			return nil
		})
	} else if err := fw.Add(dir); err != nil && w.logger != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	w.syncDirectory(dir)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		if inDir(filepath.Clean(root), path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Matches reports whether path has a watched extension.
func (w *Watcher) Matches(path string) bool {
	ext := filepath.Ext(path)
	if len(w.extensions) == 0 {
		return extract.Supported(ext)
	}
	return indexer.ExtensionAllowed(ext, w.extensions)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.index(path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) index(path string) {
	if err := w.sink.IndexFile(w.context(), path); err != nil {
		w.failed.Add(1)
		if w.logger != nil {
			w.logger.Warn("watcher failed to index file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	w.indexed.Add(1)
}

func (w *Watcher) remove(path string) {
	if err := w.sink.RemoveFile(w.context(), path); err != nil {
		w.failed.Add(1)
		if w.logger != nil {
			w.logger.Warn("watcher failed to remove file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	w.removed.Add(1)
}

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx
}

// AddDirectory adds a root while running and optionally indexes the files already in it.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	if w.logger != nil {
		w.logger.Info("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	}
	if syncExisting {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Watcher) syncDirectory(root string) {
	if w.logger != nil {
		w.logger.Debug("watcher syncing directory", zap.String("root", root))
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if w.Matches(path) {
			w.index(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Its indexed documents are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := -1
	for i, r := range w.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	if w.logger != nil {
		w.logger.Info("watcher directory removed", zap.String("path", abs))
	}
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles indexes every matching file already present under the roots.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stats returns the counts of applied changes.
func (w *Watcher) Stats() Stats {
	return Stats{Indexed: w.indexed.Load(), Removed: w.removed.Load(), Failed: w.failed.Load()}
}

// Stop stops the watcher and drops pending debounced changes.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
