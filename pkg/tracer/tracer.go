// Package tracer provides read-only adjacency queries over a story graph.
package tracer

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Tracer answers adjacency questions about one graph. It never mutates it.
type Tracer struct {
	graph *domain.Graph
}

// New creates a tracer. The graph must have a start node.
func New(g *domain.Graph) (*Tracer, error) {
	if g == nil || g.Start() == nil {
		return nil, domain.ErrNoStartNode
	}
	return &Tracer{graph: g}, nil
}

// Graph returns the traced graph.
func (t *Tracer) Graph() *domain.Graph {
	return t.graph
}

// Start returns the start node.
func (t *Tracer) Start() *domain.Node {
	return t.graph.Start()
}

// Node returns a node by id.
func (t *Tracer) Node(id string) (*domain.Node, error) {
	n, ok := t.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// AdjacentFromStart returns every node linked from the start node's output,
// in edge declaration order.
func (t *Tracer) AdjacentFromStart() ([]*domain.Node, error) {
	return t.Connected(t.graph.Start().ID, domain.PortOutput)
}

// Connected returns the targets of the outgoing links of a node, in edge
// declaration order. An empty port or domain.AllPorts selects every port.
// Links whose port no longer resolves are skipped.
func (t *Tracer) Connected(nodeID, port string) ([]*domain.Node, error) {
	if _, ok := t.graph.Node(nodeID); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	var out []*domain.Node
	for _, l := range t.graph.LinksFrom(nodeID) {
		if port != "" && port != domain.AllPorts {
			resolved, ok := t.graph.ResolvePort(l)
			if !ok || resolved != port {
				continue
			}
		}
		target, ok := t.graph.Node(l.To)
		if !ok {
			continue
		}
		out = append(out, target)
	}
	return out, nil
}

// Kind classifies a node.
func (t *Tracer) Kind(n *domain.Node) domain.NodeKind {
	return n.Kind()
}
