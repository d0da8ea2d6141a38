package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
)

// GraphStore implements ports.GraphStore in memory.
// Graphs are kept in their portable encoding so callers never share nodes
// with the store. Safe for concurrent use.
type GraphStore struct {
	data map[string]*codec.Document
	mu   sync.RWMutex
}

// NewGraphStore creates an empty in-memory store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		data: make(map[string]*codec.Document),
	}
}

// NewGraphStoreFrom creates a store seeded with graphs.
// This handles encoding automatically, improving DX for tests.
func NewGraphStoreFrom(graphs map[string]*domain.Graph) (*GraphStore, error) {
	s := NewGraphStore()
	for name, g := range graphs {
		if err := s.Save(context.Background(), name, g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Save encodes and stores the graph.
func (s *GraphStore) Save(ctx context.Context, name string, g *domain.Graph) error {
	doc, err := codec.Encode(g)
	if err != nil {
		return fmt.Errorf("failed to encode graph %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = doc
	return nil
}

// Load decodes a fresh copy of the stored graph.
func (s *GraphStore) Load(ctx context.Context, name string) (*domain.Graph, error) {
	s.mu.RLock()
	doc, ok := s.data[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
	}
	return codec.Decode(doc)
}

// Delete removes the graph.
func (s *GraphStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns the stored graph names, sorted.
func (s *GraphStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names) // Deterministic order
	return names, nil
}
