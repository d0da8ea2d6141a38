package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphStore persists authored graphs.
type GraphStore interface {
	GraphLoader

	// Save stores the graph under name, replacing any previous version.
	Save(ctx context.Context, name string, g *domain.Graph) error

	// Delete removes the graph stored under name. Deleting a missing graph is not an error.
	Delete(ctx context.Context, name string) error
}
