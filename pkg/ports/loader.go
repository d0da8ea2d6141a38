package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphLoader defines how hosts retrieve story graphs by name.
// This allows the storage layer (Loam, files, Redis, SQLite, memory) to be decoupled.
type GraphLoader interface {
	// Load returns the graph stored under name.
	// Returns domain.ErrGraphNotFound if it does not exist.
	Load(ctx context.Context, name string) (*domain.Graph, error)

	// List returns the names of every available graph, sorted.
	List(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying graphs change.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
