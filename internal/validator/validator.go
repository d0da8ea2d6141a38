// Package validator checks a story graph for authoring mistakes the graph
// model itself tolerates.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Issue is one problem found in a graph.
type Issue struct {
	NodeID  string
	Message string
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.NodeID, i.Message)
}

// Error aggregates every issue of a graph.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Issues), strings.Join(lines, "\n- "))
}

// ValidateGraph reports, in one error, a missing or duplicated start node,
// links with unknown endpoints or ports, links into the start node, port
// names used twice within a node and nodes unreachable from the start.
func ValidateGraph(g *domain.Graph) error {
	var issues []Issue
	add := func(nodeID, format string, args ...any) {
		issues = append(issues, Issue{NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
	}

	var starts []string
	for _, n := range g.Nodes() {
		if n.Kind() == domain.KindStart {
			starts = append(starts, n.ID)
		}
		seen := make(map[string]bool)
		for _, port := range n.OutputPorts() {
			if seen[port] {
				add(n.ID, "port %q is declared twice", port)
			}
			seen[port] = true
		}
	}
	switch len(starts) {
	case 0:
		add("", "graph has no start node")
	case 1:
	default:
		add("", "graph has %d start nodes: %s", len(starts), strings.Join(starts, ", "))
	}

	for _, l := range g.Links() {
		if _, ok := g.Node(l.From); !ok {
			add(l.From, "link %s leaves an unknown node", l)
			continue
		}
		target, ok := g.Node(l.To)
		if !ok {
			add(l.From, "link %s points to unknown node %q", l, l.To)
			continue
		}
		if target.Kind() == domain.KindStart {
			add(l.From, "link %s points into the start node", l)
		}
		if _, ok := g.ResolvePort(l); !ok {
			add(l.From, "link %s uses unknown port %q", l, l.PortName)
		}
	}

	if len(starts) > 0 {
		reached := reachable(g, starts[0])
		for _, n := range g.Nodes() {
			if !reached[n.ID] {
				add(n.ID, "node is unreachable from %s", starts[0])
			}
		}
	}

	if len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}

func reachable(g *domain.Graph, from string) map[string]bool {
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, l := range g.LinksFrom(current) {
			if _, ok := g.ResolvePort(l); !ok {
				continue
			}
			if !visited[l.To] {
				visited[l.To] = true
				queue = append(queue, l.To)
			}
		}
	}
	return visited
}

// ValidateSource loads the named graph and validates it. Load failures are
// returned as they are, so a broken document is not mistaken for an Issue.
func ValidateSource(ctx context.Context, loader ports.GraphLoader, name string) error {
	g, err := loader.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return ValidateGraph(g)
}

// Issues returns the issues carried by err, if it is a validation error.
func Issues(err error) []Issue {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Issues
	}
	return nil
}
