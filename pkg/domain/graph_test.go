package domain

import (
	"errors"
	"reflect"
	"testing"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	nodes := []*Node{
		NewNode("start", Vec2{}, &StartData{}),
		NewNode("a", Vec2{X: 100}, &TextData{Text: "Hello"}),
		NewNode("b", Vec2{X: 200}, &TextData{Text: "World"}),
		NewNode("pick", Vec2{X: 300}, &ChoiceData{Options: []ChoiceOption{{Label: "Left"}, {Label: "Right"}}}),
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", n.ID, err)
		}
	}
	links := []Link{
		{From: "start", PortName: PortOutput, To: "a"},
		{From: "a", PortName: PortOutput, To: "b"},
		{From: "b", PortName: PortOutput, To: "pick"},
		{From: "pick", PortIndex: 1, To: "a"},
	}
	for _, l := range links {
		if err := g.AddLink(l); err != nil {
			t.Fatalf("AddLink(%s) failed: %v", l, err)
		}
	}
	return g
}

func TestGraph_SingleStart(t *testing.T) {
	g := newTestGraph(t)

	err := g.AddNode(NewNode("start2", Vec2{}, &StartData{}))
	if !errors.Is(err, ErrStartExists) {
		t.Errorf("Expected ErrStartExists, got %v", err)
	}

	if _, err := g.RemoveNode("start"); !errors.Is(err, ErrStartProtected) {
		t.Errorf("Expected ErrStartProtected, got %v", err)
	}
	if g.Start() == nil || g.Start().ID != "start" {
		t.Errorf("Expected start node to survive")
	}
}

func TestGraph_AddLinkValidation(t *testing.T) {
	g := newTestGraph(t)

	tests := []struct {
		name string
		link Link
		want error
	}{
		{"missing target", Link{From: "a", PortName: PortOutput, To: "nope"}, ErrNodeNotFound},
		{"missing source", Link{From: "nope", PortName: PortOutput, To: "a"}, ErrNodeNotFound},
		{"into start", Link{From: "a", PortName: PortOutput, To: "start"}, ErrInvalidLink},
		{"unknown port", Link{From: "a", PortIndex: 4, PortName: "other", To: "b"}, ErrInvalidLink},
		{"duplicate", Link{From: "a", PortName: PortOutput, To: "b"}, ErrDuplicateLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.AddLink(tt.link); !errors.Is(err, tt.want) {
				t.Errorf("AddLink() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGraph_LinkNormalization(t *testing.T) {
	g := newTestGraph(t)

	links := g.LinksFrom("pick")
	if len(links) != 1 {
		t.Fatalf("Expected 1 link from pick, got %d", len(links))
	}
	if links[0].PortName != "choice 2" || links[0].PortIndex != 1 {
		t.Errorf("Expected normalized port 1/'choice 2', got %d/%q", links[0].PortIndex, links[0].PortName)
	}
}

func TestGraph_AddLinkResolvesByName(t *testing.T) {
	g := newTestGraph(t)
	if err := g.AddNode(NewNode("duel", Vec2{}, &MinigameData{})); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		link Link
		want Link
	}{
		{"name only", Link{From: "duel", PortName: PortFail, To: "a"}, Link{From: "duel", PortIndex: 1, PortName: PortFail, To: "a"}},
		{"stale index", Link{From: "duel", PortIndex: 5, PortName: PortSuccess, To: "b"}, Link{From: "duel", PortIndex: 0, PortName: PortSuccess, To: "b"}},
		{"second option", Link{From: "pick", PortName: "choice 2", To: "b"}, Link{From: "pick", PortIndex: 1, PortName: "choice 2", To: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.AddLink(tt.link); err != nil {
				t.Fatalf("AddLink() failed: %v", err)
			}
			if idx := g.LinkIndex(tt.link); idx < 0 || g.Links()[idx] != tt.want {
				t.Errorf("stored link = %v, want %v", g.Links(), tt.want)
			}
		})
	}

	err := g.AddLink(Link{From: "duel", PortIndex: 1, PortName: PortSuccess, To: "start"})
	if !errors.Is(err, ErrInvalidLink) {
		t.Errorf("Expected ErrInvalidLink for a link into start, got %v", err)
	}
	err = g.AddLink(Link{From: "duel", PortIndex: 1, PortName: PortSuccess, To: "pick"})
	if !errors.Is(err, ErrInvalidLink) {
		t.Errorf("Expected ErrInvalidLink for mismatched index and name, got %v", err)
	}
	if _, ok := g.RemoveLink(Link{From: "duel", PortName: PortFail, To: "a"}); !ok {
		t.Errorf("Expected name-only RemoveLink to find duel[1:onFail]")
	}
}

func TestGraph_InsertLinkResolvesByIndex(t *testing.T) {
	g := newTestGraph(t)

	// Restores keep index-first resolution.
	if err := g.InsertLink(0, Link{From: "pick", PortIndex: 0, PortName: "choice 2", To: "b"}); err != nil {
		t.Fatal(err)
	}
	want := Link{From: "pick", PortIndex: 0, PortName: "choice 1", To: "b"}
	if got := g.Links()[0]; got != want {
		t.Errorf("InsertLink stored %v, want %v", got, want)
	}
}

func TestGraph_Resolved(t *testing.T) {
	g := newTestGraph(t)
	stale := Link{From: "pick", PortIndex: 7, PortName: "choice 1", To: "a"}

	got, ok := g.Resolved(stale)
	if !ok {
		t.Fatal("Expected stale link to resolve by name")
	}
	if want := (Link{From: "pick", PortIndex: 0, PortName: "choice 1", To: "a"}); got != want {
		t.Errorf("Resolved() = %v, want %v", got, want)
	}
	if _, ok := g.Resolved(Link{From: "pick", PortIndex: 9, PortName: "gone", To: "a"}); ok {
		t.Errorf("Expected unresolvable link")
	}
}

func TestGraph_ResolvePortFallsBackToName(t *testing.T) {
	g := newTestGraph(t)

	// Index out of range, name still valid.
	port, ok := g.ResolvePort(Link{From: "pick", PortIndex: 7, PortName: "choice 1"})
	if !ok || port != "choice 1" {
		t.Errorf("Expected fallback to 'choice 1', got %q (ok=%v)", port, ok)
	}

	// Index wins when in range.
	port, ok = g.ResolvePort(Link{From: "pick", PortIndex: 0, PortName: "choice 2"})
	if !ok || port != "choice 1" {
		t.Errorf("Expected index resolution 'choice 1', got %q", port)
	}

	if _, ok := g.ResolvePort(Link{From: "pick", PortIndex: 9, PortName: "gone"}); ok {
		t.Errorf("Expected unresolvable port")
	}
}

func TestGraph_RemoveNodeAndRestore(t *testing.T) {
	g := newTestGraph(t)
	if err := g.AddGroup(Group{ID: "g1", Nodes: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}

	beforeLinks := g.Links()
	beforeOrder := ids(g.Nodes())
	beforeGroups := g.Groups()

	removal, err := g.RemoveNode("a")
	if err != nil {
		t.Fatalf("RemoveNode failed: %v", err)
	}
	if len(removal.Links) != 3 {
		t.Errorf("Expected 3 detached links, got %d", len(removal.Links))
	}
	if grp, _ := g.Group("g1"); grp.Contains("a") {
		t.Errorf("Expected node detached from group")
	}

	// Restore in the documented order: node, links, groups.
	if err := g.InsertNode(removal.Index, removal.Node); err != nil {
		t.Fatal(err)
	}
	for _, il := range removal.Links {
		if err := g.InsertLink(il.Index, il.Link); err != nil {
			t.Fatal(err)
		}
	}
	for _, m := range removal.Groups {
		if err := g.AttachToGroup(m.GroupID, removal.Node.ID, m.Index); err != nil {
			t.Fatal(err)
		}
	}

	if !reflect.DeepEqual(g.Links(), beforeLinks) {
		t.Errorf("Links not restored:\n got %v\nwant %v", g.Links(), beforeLinks)
	}
	if !reflect.DeepEqual(ids(g.Nodes()), beforeOrder) {
		t.Errorf("Order not restored: %v vs %v", ids(g.Nodes()), beforeOrder)
	}
	if !reflect.DeepEqual(g.Groups(), beforeGroups) {
		t.Errorf("Groups not restored: %v vs %v", g.Groups(), beforeGroups)
	}
}

func TestGraph_ReplaceDataKeepsKind(t *testing.T) {
	g := newTestGraph(t)

	if _, err := g.ReplaceData("a", &ChoiceData{}); err == nil {
		t.Errorf("Expected kind change to be rejected")
	}
	old, err := g.ReplaceData("a", &TextData{Text: "Hi"})
	if err != nil {
		t.Fatal(err)
	}
	if old.(*TextData).Text != "Hello" {
		t.Errorf("Expected previous payload, got %+v", old)
	}
}

func TestIntFlagRequirement_Holds(t *testing.T) {
	tests := []struct {
		op     IntComparison
		actual int
		want   bool
	}{
		{CmpEqual, 3, true},
		{"", 2, false},
		{CmpNotEqual, 2, true},
		{CmpLess, 2, true},
		{CmpLessEqual, 3, true},
		{CmpGreater, 3, false},
		{CmpGreaterEqual, 4, true},
	}
	for _, tt := range tests {
		got, err := IntFlagRequirement{Name: "gold", Op: tt.op, Value: 3}.Holds(tt.actual)
		if err != nil {
			t.Fatalf("Holds(%s) error: %v", tt.op, err)
		}
		if got != tt.want {
			t.Errorf("Holds(%d %s 3) = %v, want %v", tt.actual, tt.op, got, tt.want)
		}
	}

	if _, err := (IntFlagRequirement{Op: "~"}).Holds(1); err == nil {
		t.Errorf("Expected error for unknown operator")
	}
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
