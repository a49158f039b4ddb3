package vector

import (
	"context"
	"fmt"
	"sync"
)

// Store hands out Collections over one shared Index, creating each
// collection on first use.
type Store struct {
	index             Index
	dimensions        int
	defaultCollection string
	opts              []CollectionOption
	mu                sync.Mutex
	collections       map[string]*Collection
}

// NewStore creates a store whose collections all use dimensions.
func NewStore(index Index, dimensions int, defaultCollection string, opts ...CollectionOption) *Store {
	return &Store{
		index:             index,
		dimensions:        dimensions,
		defaultCollection: defaultCollection,
		opts:              opts,
		collections:       make(map[string]*Collection),
	}
}

// Collection returns the named collection, ensuring it exists. An empty
// name selects the default collection.
func (s *Store) Collection(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		name = s.defaultCollection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := NewCollection(ctx, s.index, name, s.dimensions, s.opts...)
	if err != nil {
		return nil, err
	}
	s.collections[name] = c
	return c, nil
}

// DefaultCollection returns the name used when callers pass none.
func (s *Store) DefaultCollection() string { return s.defaultCollection }

// List returns every collection known to the index.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.index.ListCollections(ctx)
}

// Counts returns the number of points in every collection of the index.
// Collections are counted through the index directly, so collections of
// another dimension are reported instead of failing the dimension check.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	names, err := s.index.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(names))
	for _, name := range names {
		n, err := s.index.Count(ctx, name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// Index returns the underlying index.
func (s *Store) Index() Index { return s.index }

// Close closes the underlying index.
func (s *Store) Close() error { return s.index.Close() }
