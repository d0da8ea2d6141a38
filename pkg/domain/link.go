package domain

import "fmt"

// Link is a directed connection from one output port of a source node to the
// input of a target node.
//
// The output port is stored both by index and by name. A newly added link is
// resolved by name, its index only checked against it. A stored link resolves
// by index first, with the name as the fallback for nodes whose ports were
// reordered by a property edit.
type Link struct {
	From      string `json:"from" yaml:"from"`
	PortIndex int    `json:"port_index" yaml:"port_index"`
	PortName  string `json:"port_name" yaml:"port_name"`
	To        string `json:"to" yaml:"to"`
}

func (l Link) String() string {
	return fmt.Sprintf("%s[%d:%s] -> %s", l.From, l.PortIndex, l.PortName, l.To)
}

// IndexedLink remembers where a link sat in the declaration order.
type IndexedLink struct {
	Index int  `json:"index"`
	Link  Link `json:"link"`
}

// Group is a visual container of nodes. It has no execution semantics.
type Group struct {
	ID    string   `json:"id" yaml:"id"`
	Title string   `json:"title,omitempty" yaml:"title,omitempty"`
	Nodes []string `json:"nodes" yaml:"nodes"`
}

// Contains reports whether the node id belongs to the group.
func (g *Group) Contains(nodeID string) bool {
	return g.indexOf(nodeID) >= 0
}

func (g *Group) indexOf(nodeID string) int {
	for i, id := range g.Nodes {
		if id == nodeID {
			return i
		}
	}
	return -1
}

func (g *Group) clone() *Group {
	c := *g
	c.Nodes = append([]string(nil), g.Nodes...)
	return &c
}

// Membership records a node's slot inside a group.
type Membership struct {
	GroupID string `json:"group_id"`
	Index   int    `json:"index"`
}
