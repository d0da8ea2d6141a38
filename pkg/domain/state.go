package domain

// Status is the interpreter state.
type Status string

const (
	// StatusIdle means there is no current node: not started, or a terminal
	// branch was reached.
	StatusIdle Status = "idle"
	// StatusAwaitingAdvance means a text node is displayed and the interpreter
	// waits for the player's advance input.
	StatusAwaitingAdvance Status = "awaiting_advance"
	// StatusAwaitingChoice means choices are displayed; advance input is
	// ignored until one is picked.
	StatusAwaitingChoice Status = "awaiting_choice"
	// StatusResolving is transient, inside one resolution pass.
	StatusResolving Status = "resolving"
)

// Snapshot is a read-only view of a running session.
type Snapshot struct {
	SessionID     string   `json:"session_id,omitempty"`
	CurrentNodeID string   `json:"current_node_id,omitempty"`
	Status        Status   `json:"status"`
	Choices       []string `json:"choices,omitempty"`
	// History lists every text node that became current, in order.
	History []string `json:"history,omitempty"`
}
