package domain

// Port names shared by several node kinds.
const (
	// PortOutput is the single output port of linear nodes (text, condition, ...).
	PortOutput = "output"

	// PortSuccess and PortFail are the two output ports of a minigame node.
	PortSuccess = "onSuccess"
	PortFail    = "onFail"

	// AllPorts selects every output port of a node in tracer queries.
	AllPorts = "all"
)

// DefaultPasteOffset is the visual delta applied to pasted nodes.
var DefaultPasteOffset = Vec2{X: 30, Y: 30}
