package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Player is the surface of a running story used by hosts (HTTP, console).
type Player interface {
	// Start executes the nodes linked from the start node.
	Start(ctx context.Context) error

	// Advance consumes one player advance input.
	Advance(ctx context.Context) error

	// Snapshot returns a read-only view of the interpreter state.
	Snapshot() domain.Snapshot
}
