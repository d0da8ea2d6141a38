package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Builder manages the graph construction.
// Nodes, links and groups keep the order in which they were declared.
type Builder struct {
	nodes  []*NodeBuilder
	byID   map[string]*NodeBuilder
	links  []domain.Link
	groups []domain.Group
	errs   []error
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		byID: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.byID[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id},
		builder: b,
	}
	b.byID[id] = nb
	b.nodes = append(b.nodes, nb)
	return nb
}

// Start adds the start node.
func (b *Builder) Start(id string) *NodeBuilder {
	return b.Add(id).Start()
}

// Group declares a visual group over existing node ids.
func (b *Builder) Group(id, title string, nodes ...string) *Builder {
	b.groups = append(b.groups, domain.Group{ID: id, Title: title, Nodes: nodes})
	return b
}

func (b *Builder) link(from string, port string, index int, to string) {
	b.links = append(b.links, domain.Link{From: from, PortIndex: index, PortName: port, To: to})
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// Build compiles the declarations into a graph.
func (b *Builder) Build() (*domain.Graph, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid graph declaration: %w", errors.Join(b.errs...))
	}

	g := domain.NewGraph()
	for _, nb := range b.nodes {
		n := nb.Build()
		if n.Data == nil {
			return nil, fmt.Errorf("node %s has no kind", n.ID)
		}
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("failed to add node %s: %w", n.ID, err)
		}
	}
	for _, l := range b.links {
		if err := g.AddLink(l); err != nil {
			return nil, fmt.Errorf("failed to add link %s: %w", l, err)
		}
	}
	for _, grp := range b.groups {
		if err := g.AddGroup(grp); err != nil {
			return nil, fmt.Errorf("failed to add group %s: %w", grp.ID, err)
		}
	}
	return g, nil
}

// MustBuild is like Build but panics on error. Meant for tests and examples.
func (b *Builder) MustBuild() *domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
