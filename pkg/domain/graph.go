package domain

import (
	"fmt"
	"sort"
)

// Graph is the authoritative story container: an id-indexed arena of nodes,
// links in declaration order, and groups.
//
// Graph is not safe for concurrent mutation. At runtime it is only read.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	links   []Link
	groups  []*Group
	startID string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeIndex returns the insertion position of a node, or -1.
func (g *Graph) NodeIndex(id string) int {
	for i, nid := range g.order {
		if nid == id {
			return i
		}
	}
	return -1
}

// Start returns the start node, or nil if the graph has none.
func (g *Graph) Start() *Node {
	if g.startID == "" {
		return nil
	}
	return g.nodes[g.startID]
}

// AddNode appends a node.
func (g *Graph) AddNode(n *Node) error {
	return g.InsertNode(len(g.order), n)
}

// InsertNode places a node at the given position of the insertion order.
// Out of range positions are clamped.
func (g *Graph) InsertNode(index int, n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("node must have an id")
	}
	if n.Data == nil {
		return fmt.Errorf("node %s has no data", n.ID)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	if n.Kind() == KindStart {
		if g.startID != "" {
			return fmt.Errorf("%w: %s", ErrStartExists, g.startID)
		}
		g.startID = n.ID
	}

	index = clamp(index, len(g.order))
	g.order = append(g.order, "")
	copy(g.order[index+1:], g.order[index:])
	g.order[index] = n.ID
	g.nodes[n.ID] = n
	return nil
}

// NodeRemoval describes everything detached when a node was removed, in the
// order needed to put it back.
type NodeRemoval struct {
	Index  int
	Node   *Node
	Links  []IndexedLink
	Groups []Membership
}

// RemoveNode detaches a node, its links and its group memberships.
func (g *Graph) RemoveNode(id string) (*NodeRemoval, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if id == g.startID {
		return nil, ErrStartProtected
	}

	removal := &NodeRemoval{Index: g.NodeIndex(id), Node: n}

	// Ascending original indices; removal runs backwards so each index stays valid
	// for an ascending re-insert.
	for i, l := range g.links {
		if l.From == id || l.To == id {
			removal.Links = append(removal.Links, IndexedLink{Index: i, Link: l})
		}
	}
	for i := len(removal.Links) - 1; i >= 0; i-- {
		g.deleteLinkAt(removal.Links[i].Index)
	}

	for _, grp := range g.groups {
		if idx := grp.indexOf(id); idx >= 0 {
			removal.Groups = append(removal.Groups, Membership{GroupID: grp.ID, Index: idx})
			grp.Nodes = append(grp.Nodes[:idx], grp.Nodes[idx+1:]...)
		}
	}

	g.order = append(g.order[:removal.Index], g.order[removal.Index+1:]...)
	delete(g.nodes, id)
	return removal, nil
}

// ReplaceData swaps the payload of a node and returns the previous one.
// The kind must not change.
func (g *Graph) ReplaceData(id string, data NodeData) (NodeData, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if data == nil || data.Kind() != n.Kind() {
		return nil, fmt.Errorf("node %s: cannot change kind %s", id, n.Kind())
	}
	old := n.Data
	n.Data = data
	return old, nil
}

// Move sets the authoring position of a node.
func (g *Graph) Move(id string, pos Vec2) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n.Position = pos
	return nil
}

// Links returns every link in declaration order.
func (g *Graph) Links() []Link {
	return append([]Link(nil), g.links...)
}

// LinksFrom returns the outgoing links of a node in declaration order.
func (g *Graph) LinksFrom(id string) []Link {
	var out []Link
	for _, l := range g.links {
		if l.From == id {
			out = append(out, l)
		}
	}
	return out
}

// LinksTo returns the incoming links of a node in declaration order.
func (g *Graph) LinksTo(id string) []Link {
	var out []Link
	for _, l := range g.links {
		if l.To == id {
			out = append(out, l)
		}
	}
	return out
}

// ResolvePort returns the output port name a link leaves from, resolving by
// index first and by name second.
func (g *Graph) ResolvePort(l Link) (string, bool) {
	src, ok := g.nodes[l.From]
	if !ok {
		return "", false
	}
	ports := src.OutputPorts()
	if l.PortIndex >= 0 && l.PortIndex < len(ports) {
		return ports[l.PortIndex], true
	}
	if idx := src.PortIndex(l.PortName); idx >= 0 {
		return ports[idx], true
	}
	return "", false
}

// Resolved returns the link rewritten to the index and name of the port it
// currently leaves from.
func (g *Graph) Resolved(l Link) (Link, bool) {
	port, ok := g.ResolvePort(l)
	if !ok {
		return l, false
	}
	return g.withPort(l, port), true
}

// AddLink appends a newly authored link. The port name wins: a zero or
// out-of-range index next to a name is treated as unset, and an in-range
// index naming a different port is rejected. A link without a name is
// resolved by index.
func (g *Graph) AddLink(l Link) error {
	if err := g.checkEndpoints(l); err != nil {
		return err
	}
	port, err := g.authoredPort(l)
	if err != nil {
		return err
	}
	return g.insert(len(g.links), g.withPort(l, port))
}

// InsertLink restores a previously stored link at the given position of the
// declaration order. The port resolves by index first and by name second, so
// a link survives a reorder of its source's ports.
func (g *Graph) InsertLink(index int, l Link) error {
	if err := g.checkEndpoints(l); err != nil {
		return err
	}
	port, ok := g.ResolvePort(l)
	if !ok {
		return fmt.Errorf("%w: %s has no port %d/%q", ErrInvalidLink, l.From, l.PortIndex, l.PortName)
	}
	return g.insert(index, g.withPort(l, port))
}

func (g *Graph) insert(index int, l Link) error {
	if g.LinkIndex(l) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateLink, l)
	}
	index = clamp(index, len(g.links))
	g.links = append(g.links, Link{})
	copy(g.links[index+1:], g.links[index:])
	g.links[index] = l
	return nil
}

func (g *Graph) checkEndpoints(l Link) error {
	if _, ok := g.nodes[l.From]; !ok {
		return fmt.Errorf("%w: source %s: %w", ErrInvalidLink, l.From, ErrNodeNotFound)
	}
	target, ok := g.nodes[l.To]
	if !ok {
		return fmt.Errorf("%w: target %s: %w", ErrInvalidLink, l.To, ErrNodeNotFound)
	}
	if !target.HasInput() {
		return fmt.Errorf("%w: %s has no input port", ErrInvalidLink, l.To)
	}
	return nil
}

func (g *Graph) authoredPort(l Link) (string, error) {
	src, ok := g.nodes[l.From]
	if !ok {
		return "", fmt.Errorf("%w: source %s: %w", ErrInvalidLink, l.From, ErrNodeNotFound)
	}
	ports := src.OutputPorts()
	if l.PortName == "" {
		if l.PortIndex < 0 || l.PortIndex >= len(ports) {
			return "", fmt.Errorf("%w: %s has no port %d", ErrInvalidLink, l.From, l.PortIndex)
		}
		return ports[l.PortIndex], nil
	}
	idx := src.PortIndex(l.PortName)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s has no port %q", ErrInvalidLink, l.From, l.PortName)
	}
	if l.PortIndex > 0 && l.PortIndex < len(ports) && l.PortIndex != idx {
		return "", fmt.Errorf("%w: %s port %d is %q, not %q", ErrInvalidLink, l.From, l.PortIndex, ports[l.PortIndex], l.PortName)
	}
	return ports[idx], nil
}

func (g *Graph) withPort(l Link, port string) Link {
	return Link{From: l.From, PortIndex: g.nodes[l.From].PortIndex(port), PortName: port, To: l.To}
}

// LinkIndex finds a link by identity (source, resolved port, target), or -1.
// A stored link matches itself; any other query is resolved the way AddLink
// resolves it.
func (g *Graph) LinkIndex(l Link) int {
	for i, existing := range g.links {
		if existing == l {
			return i
		}
	}
	port, err := g.authoredPort(l)
	if err != nil {
		return -1
	}
	for i, existing := range g.links {
		if existing.From != l.From || existing.To != l.To {
			continue
		}
		if p, ok := g.ResolvePort(existing); ok && p == port {
			return i
		}
	}
	return -1
}

// RemoveLink deletes a link by identity and returns its former position.
func (g *Graph) RemoveLink(l Link) (IndexedLink, bool) {
	idx := g.LinkIndex(l)
	if idx < 0 {
		return IndexedLink{}, false
	}
	removed := g.links[idx]
	g.deleteLinkAt(idx)
	return IndexedLink{Index: idx, Link: removed}, true
}

func (g *Graph) deleteLinkAt(i int) {
	g.links = append(g.links[:i], g.links[i+1:]...)
}

// Groups returns copies of every group.
func (g *Graph) Groups() []Group {
	out := make([]Group, 0, len(g.groups))
	for _, grp := range g.groups {
		out = append(out, *grp.clone())
	}
	return out
}

// Group returns a copy of a group by id.
func (g *Graph) Group(id string) (Group, bool) {
	for _, grp := range g.groups {
		if grp.ID == id {
			return *grp.clone(), true
		}
	}
	return Group{}, false
}

// GroupsOf returns the ids of the groups containing a node, sorted.
func (g *Graph) GroupsOf(nodeID string) []string {
	var ids []string
	for _, grp := range g.groups {
		if grp.Contains(nodeID) {
			ids = append(ids, grp.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// AddGroup appends a group.
func (g *Graph) AddGroup(grp Group) error {
	return g.InsertGroup(len(g.groups), grp)
}

// InsertGroup places a group at a position. Member ids must exist.
func (g *Graph) InsertGroup(index int, grp Group) error {
	if grp.ID == "" {
		return fmt.Errorf("group must have an id")
	}
	for _, existing := range g.groups {
		if existing.ID == grp.ID {
			return fmt.Errorf("duplicate group id: %s", grp.ID)
		}
	}
	for _, id := range grp.Nodes {
		if _, ok := g.nodes[id]; !ok {
			return fmt.Errorf("group %s: %w: %s", grp.ID, ErrNodeNotFound, id)
		}
	}
	index = clamp(index, len(g.groups))
	g.groups = append(g.groups, nil)
	copy(g.groups[index+1:], g.groups[index:])
	g.groups[index] = grp.clone()
	return nil
}

// RemoveGroup deletes a group (not its nodes) and returns it with its position.
func (g *Graph) RemoveGroup(id string) (int, Group, error) {
	for i, grp := range g.groups {
		if grp.ID == id {
			g.groups = append(g.groups[:i], g.groups[i+1:]...)
			return i, *grp, nil
		}
	}
	return -1, Group{}, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
}

// AttachToGroup inserts a node into a group at a member position.
func (g *Graph) AttachToGroup(groupID, nodeID string, index int) error {
	if _, ok := g.nodes[nodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	for _, grp := range g.groups {
		if grp.ID != groupID {
			continue
		}
		if grp.Contains(nodeID) {
			return nil
		}
		index = clamp(index, len(grp.Nodes))
		grp.Nodes = append(grp.Nodes, "")
		copy(grp.Nodes[index+1:], grp.Nodes[index:])
		grp.Nodes[index] = nodeID
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
}

// DetachFromGroup removes a node from a group.
func (g *Graph) DetachFromGroup(groupID, nodeID string) error {
	for _, grp := range g.groups {
		if grp.ID != groupID {
			continue
		}
		if idx := grp.indexOf(nodeID); idx >= 0 {
			grp.Nodes = append(grp.Nodes[:idx], grp.Nodes[idx+1:]...)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
}

func clamp(index, length int) int {
	if index < 0 {
		return 0
	}
	if index > length {
		return length
	}
	return index
}
