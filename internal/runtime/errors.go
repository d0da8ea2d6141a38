package runtime

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// MissingCollaboratorError is returned by New when a node of the graph
// needs a collaborator that was not provided.
type MissingCollaboratorError struct {
	Collaborator string
	NodeID       string
	Kind         domain.NodeKind
}

func (e *MissingCollaboratorError) Error() string {
	return fmt.Sprintf("missing collaborator %q required by %s node %s", e.Collaborator, e.Kind, e.NodeID)
}
