package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu      sync.Mutex
	indexed []string
	removed []string
	failOn  string
}

func (s *recordingSink) IndexFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && strings.HasSuffix(path, s.failOn) {
		return errors.New("extract failed")
	}
	s.indexed = append(s.indexed, path)
	return nil
}

func (s *recordingSink) RemoveFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, path)
	return nil
}

func (s *recordingSink) snapshot() (indexed, removed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.indexed...), append([]string(nil), s.removed...)
}

func count(paths []string, suffix string) int {
	n := 0
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, sink Sink, roots []string, opts ...WatcherOption) *Watcher {
	t.Helper()
	opts = append([]WatcherOption{WithDebounce(100 * time.Millisecond)}, opts...)
	w := NewWatcher(sink, roots, true, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, &recordingSink{}, nil, WithExtensions([]string{".txt"}))

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	startWatcher(t, sink, []string{dir}, WithExtensions([]string{".txt"}))

	path := filepath.Join(dir, "cv.txt")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(strings.Repeat("golang ", i+1)), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.xyz"), []byte("skip"), 0600); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, 2*time.Second, func() bool {
		indexed, _ := sink.snapshot()
		return count(indexed, "cv.txt") >= 1
	})
	if !ok {
		t.Fatal("cv.txt was not indexed")
	}
	time.Sleep(300 * time.Millisecond)
	indexed, _ := sink.snapshot()
	if n := count(indexed, "cv.txt"); n != 1 {
		t.Errorf("cv.txt indexed %d times, want 1", n)
	}
	if count(indexed, "notes.xyz") != 0 {
		t.Error("unwatched extension was indexed")
	}
}

func TestWatcher_RemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.md")
	if err := os.WriteFile(path, []byte("# Go engineer"), 0600); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	w := startWatcher(t, sink, []string{dir})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, 2*time.Second, func() bool {
		_, removed := sink.snapshot()
		return count(removed, "job.md") == 1
	})
	if !ok {
		t.Fatal("remove was not forwarded")
	}
	if st := w.Stats(); st.Removed != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestWatcher_FailedIndexCounted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "good.txt"), []byte("y"), 0600); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{failOn: "bad.txt"}
	w := startWatcher(t, sink, []string{dir})
	w.SyncExistingFiles()

	st := w.Stats()
	if st.Indexed != 1 || st.Failed != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestWatcher_Matches(t *testing.T) {
	w := NewWatcher(&recordingSink{}, nil, true)
	for path, want := range map[string]bool{
		"/a/cv.pdf":      true,
		"/a/cv.DOCX":     true,
		"/a/jobs.xlsx":   true,
		"/a/notes.txt":   true,
		"/a/slides.pptx": false,
		"/a/noext":       false,
	} {
		if got := w.Matches(path); got != want {
			t.Errorf("Matches(%q) = %v, want %v", path, got, want)
		}
	}
	w = NewWatcher(&recordingSink{}, nil, true, WithExtensions([]string{"md"}))
	if !w.Matches("/a/b.MD") || w.Matches("/a/b.txt") {
		t.Error("explicit extension list not applied")
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	w := startWatcher(t, sink, []string{dir}, WithExtensions([]string{".txt"}))
	w.SyncExistingFiles()

	indexed, _ := sink.snapshot()
	if len(indexed) != 1 || !strings.HasSuffix(indexed[0], "a.txt") {
		t.Errorf("indexed = %v", indexed)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, &recordingSink{}, []string{root})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
}

func TestWatcher_NewDirectoryIndexed(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	startWatcher(t, sink, []string{dir}, WithExtensions([]string{".txt", ".md"}))

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("deep"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "skip.xyz"), []byte("skip"), 0600); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, 2*time.Second, func() bool {
		indexed, _ := sink.snapshot()
		return count(indexed, "deep.txt") >= 1
	})
	if !ok {
		t.Fatal("deep.txt was not indexed")
	}
	indexed, _ := sink.snapshot()
	if count(indexed, "skip.xyz") != 0 {
		t.Error("skip.xyz should not be indexed")
	}
}
