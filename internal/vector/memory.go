package vector

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/models"
	"github.com/hyperjump/jobmatch/pkg/utils"
)

// MemoryIndex is an in-process Index using brute-force cosine search.
// Suitable for tests, local runs and small corpora.
type MemoryIndex struct {
	collections map[string]*memoryCollection
	mu          sync.RWMutex
}

type memoryCollection struct {
	Dimensions int
	Records    []Record
	byID       map[string]int
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memoryCollection)}
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// EnsureCollection creates the collection if absent. An existing collection
// with a different dimension is a DimensionMismatch.
func (m *MemoryIndex) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return apperr.InvalidParameter("dimensions must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		if c.Dimensions != dimensions {
			return &apperr.DimensionError{Collection: name, Want: c.Dimensions, Got: dimensions, ChunkIndex: -1}
		}
		return nil
	}
	m.collections[name] = &memoryCollection{Dimensions: dimensions, byID: map[string]int{}}
	return nil
}

// ListCollections returns collection names in sorted order.
func (m *MemoryIndex) ListCollections(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Upsert inserts or replaces records by ID. The whole call is rejected
// before any write if a vector has the wrong dimension.
func (m *MemoryIndex) Upsert(ctx context.Context, collection string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, r := range records {
		if len(r.Vector) != c.Dimensions {
			return &apperr.DimensionError{Collection: collection, Want: c.Dimensions, Got: len(r.Vector), ChunkIndex: -1}
		}
	}
	for _, r := range records {
		stored := Record{
			ID:      r.ID,
			Vector:  append([]float32(nil), r.Vector...),
			Payload: copyPayload(r.Payload),
		}
		if i, ok := c.byID[r.ID]; ok {
			c.Records[i] = stored
			continue
		}
		c.byID[r.ID] = len(c.Records)
		c.Records = append(c.Records, stored)
	}
	return nil
}

// Search scores every matching record by cosine similarity.
func (m *MemoryIndex) Search(ctx context.Context, collection string, req *SearchRequest) ([]*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if len(req.Vector) != c.Dimensions {
		return nil, &apperr.DimensionError{Collection: collection, Want: c.Dimensions, Got: len(req.Vector), ChunkIndex: -1}
	}
	if req.Limit <= 0 {
		return nil, nil
	}
	var matches []*models.Match
	for _, r := range c.Records {
		if !matchesFilter(r.Payload, req.Filter) {
			continue
		}
		score := utils.Cosine(req.Vector, r.Vector)
		if req.ScoreThreshold != nil && score < *req.ScoreThreshold {
			continue
		}
		matches = append(matches, &models.Match{ID: r.ID, Score: score, Payload: copyPayload(r.Payload)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}
	return matches, nil
}

// Scroll returns matching records in insertion order.
func (m *MemoryIndex) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	var out []Record
	for _, r := range c.Records {
		if !matchesFilter(r.Payload, filter) {
			continue
		}
		out = append(out, Record{ID: r.ID, Payload: copyPayload(r.Payload)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of records matching filter.
func (m *MemoryIndex) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	n := 0
	for _, r := range c.Records {
		if matchesFilter(r.Payload, filter) {
			n++
		}
	}
	return n, nil
}

// DeleteByFilter removes matching records by rebuilding the slice.
func (m *MemoryIndex) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	kept := make([]Record, 0, len(c.Records))
	c.byID = make(map[string]int, len(c.Records))
	for _, r := range c.Records {
		if matchesFilter(r.Payload, filter) {
			continue
		}
		c.byID[r.ID] = len(kept)
		kept = append(kept, r)
	}
	c.Records = kept
	return nil
}

// Size returns the total number of records across collections.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.collections {
		n += len(c.Records)
	}
	return n
}

// Save persists all collections to path with encoding/gob. The directory is created if needed.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(m.collections); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the snapshot at path.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()
	var collections map[string]*memoryCollection
	if err := gob.NewDecoder(f).Decode(&collections); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	for _, c := range collections {
		c.byID = make(map[string]int, len(c.Records))
		for i, r := range c.Records {
			c.byID[r.ID] = i
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = collections
	return nil
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func copyPayload(p map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// matchesFilter reports whether every filter condition holds for payload.
// Numbers compare by value regardless of their Go type.
func matchesFilter(payload map[string]interface{}, filter Filter) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if !models.IsScalar(a) || !models.IsScalar(b) {
		return false
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
