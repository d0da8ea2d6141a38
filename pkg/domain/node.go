package domain

import "fmt"

// NodeKind is the type tag of a node. It is derived from the node payload.
type NodeKind string

// Node kinds.
const (
	KindStart     NodeKind = "start"
	KindText      NodeKind = "text"
	KindChoice    NodeKind = "choice"
	KindCondition NodeKind = "condition"
	KindModifier  NodeKind = "modifier"
	KindScene     NodeKind = "scene"
	KindCharacter NodeKind = "character"
	KindAudio     NodeKind = "audio"
	KindDelay     NodeKind = "delay"
	KindMinigame  NodeKind = "minigame"
)

// Kinds lists every node kind in a stable order.
var Kinds = []NodeKind{
	KindStart, KindText, KindChoice, KindCondition, KindModifier,
	KindScene, KindCharacter, KindAudio, KindDelay, KindMinigame,
}

// NodeData is the closed set of node payloads. Only types declared in this
// package implement it.
type NodeData interface {
	Kind() NodeKind
	// OutputPorts returns the ordered output port names of the node.
	OutputPorts() []string
	isNodeData()
}

// NewData returns a zero payload for the given kind.
func NewData(kind NodeKind) (NodeData, error) {
	switch kind {
	case KindStart:
		return &StartData{}, nil
	case KindText:
		return &TextData{}, nil
	case KindChoice:
		return &ChoiceData{}, nil
	case KindCondition:
		return &ConditionData{}, nil
	case KindModifier:
		return &ModifierData{}, nil
	case KindScene:
		return &SceneData{}, nil
	case KindCharacter:
		return &CharacterData{}, nil
	case KindAudio:
		return &AudioData{}, nil
	case KindDelay:
		return &DelayData{}, nil
	case KindMinigame:
		return &MinigameData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Node represents a logical unit in the story graph.
type Node struct {
	// ID is a stable GUID. It never changes once the node is created.
	ID string

	// Position is the authoring canvas position.
	Position Vec2

	// Data holds the kind-specific authored fields.
	Data NodeData
}

// NewNode creates a node.
func NewNode(id string, pos Vec2, data NodeData) *Node {
	return &Node{ID: id, Position: pos, Data: data}
}

// Kind returns the node type tag.
func (n *Node) Kind() NodeKind {
	if n == nil || n.Data == nil {
		return ""
	}
	return n.Data.Kind()
}

// OutputPorts returns the ordered output port names.
func (n *Node) OutputPorts() []string {
	if n == nil || n.Data == nil {
		return nil
	}
	return n.Data.OutputPorts()
}

// HasInput reports whether the node accepts incoming links.
// Every node except the start node has one multi-capacity input.
func (n *Node) HasInput() bool {
	return n.Kind() != KindStart
}

// IsTextBearing reports whether the node becomes the interpreter's resting point.
func (n *Node) IsTextBearing() bool {
	return n.Kind() == KindText
}

// PortIndex returns the index of the named output port, or -1.
func (n *Node) PortIndex(name string) int {
	for i, p := range n.OutputPorts() {
		if p == name {
			return i
		}
	}
	return -1
}
