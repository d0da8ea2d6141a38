// Package editor records structural graph edits so they can be undone, and
// copies nodes between graphs.
//
// Every mutation made through a Tracker pushes one inverse Command onto the
// undo stack before it returns. Undo pops and runs the newest one. Changes
// made while an undo is running are committed but never recorded.
package editor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/google/uuid"
)

var (
	// ErrNothingToUndo is returned by Undo on an empty history.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrEmptyClipboard is returned by Paste before anything was copied.
	ErrEmptyClipboard = errors.New("clipboard is empty")
)

// DefaultPasteOffset is added to the position of pasted nodes.
var DefaultPasteOffset = domain.Vec2{X: 30, Y: 30}

// Change is one batch of structural edits. Steps run in field order.
type Change struct {
	CreateLinks  []domain.Link
	RemoveLinks  []domain.Link
	RemoveNodes  []string
	RemoveGroups []string
}

// IsEmpty reports whether the change does nothing.
func (c Change) IsEmpty() bool {
	return len(c.CreateLinks) == 0 && len(c.RemoveLinks) == 0 &&
		len(c.RemoveNodes) == 0 && len(c.RemoveGroups) == 0
}

// Event describes a committed mutation.
type Event struct {
	Op      string
	Undo    bool
	NodeIDs []string
}

// Observer is notified after every committed mutation.
type Observer func(Event)

// Tracker edits one graph and keeps its undo history.
// It is not safe for concurrent use.
type Tracker struct {
	graph    *domain.Graph
	logger   *slog.Logger
	observer Observer
	newID    func() string
	offset   domain.Vec2
	limit    int

	history   []Command
	undoing   bool
	clipboard Clipboard
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithObserver registers a callback for committed mutations.
func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.observer = o
	}
}

// WithIDGenerator replaces uuid generation for new nodes.
func WithIDGenerator(gen func() string) Option {
	return func(t *Tracker) {
		if gen != nil {
			t.newID = gen
		}
	}
}

// WithPasteOffset overrides DefaultPasteOffset.
func WithPasteOffset(offset domain.Vec2) Option {
	return func(t *Tracker) {
		t.offset = offset
	}
}

// WithHistoryLimit keeps at most n commands. Zero means unlimited.
func WithHistoryLimit(n int) Option {
	return func(t *Tracker) {
		t.limit = n
	}
}

// NewTracker starts tracking edits of g.
func NewTracker(g *domain.Graph, opts ...Option) *Tracker {
	t := &Tracker{
		graph:  g,
		logger: logging.NewNop(),
		newID:  uuid.NewString,
		offset: DefaultPasteOffset,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Graph returns the tracked graph.
func (t *Tracker) Graph() *domain.Graph {
	return t.graph
}

// History returns the recorded commands, oldest first.
func (t *Tracker) History() []Command {
	return append([]Command(nil), t.history...)
}

// CanUndo reports whether Undo has something to do.
func (t *Tracker) CanUndo() bool {
	return len(t.history) > 0
}

func (t *Tracker) record(cmd Command) {
	if t.undoing {
		return
	}
	t.history = append(t.history, cmd)
	if t.limit > 0 && len(t.history) > t.limit {
		t.history = t.history[len(t.history)-t.limit:]
	}
}

func (t *Tracker) notify(op string, ids ...string) {
	if t.observer != nil {
		t.observer(Event{Op: op, Undo: t.undoing, NodeIDs: ids})
	}
}

// Apply commits a change and records its inverse as one command. When a step
// fails, the steps already committed are reverted and nothing is recorded.
// The start node is never removed.
func (t *Tracker) Apply(c Change) error {
	if c.IsEmpty() {
		return nil
	}

	// Inverses are prepended so the batch reverts the newest step first.
	var inverse []Command
	push := func(cmd Command) {
		inverse = append([]Command{cmd}, inverse...)
	}
	rollback := func(cause error) error {
		if err := (&BatchCmd{Commands: inverse}).Apply(t.graph, t.logger); err != nil {
			return errors.Join(cause, fmt.Errorf("rollback failed: %w", err))
		}
		return cause
	}

	if len(c.CreateLinks) > 0 {
		created := &RemoveLinksCmd{}
		for _, l := range c.CreateLinks {
			if err := t.graph.AddLink(l); err != nil {
				push(created)
				return rollback(fmt.Errorf("create link %s: %w", l, err))
			}
			created.Links = append(created.Links, l)
		}
		push(created)
	}

	if len(c.RemoveLinks) > 0 {
		removed := &RestoreLinksCmd{}
		for _, l := range c.RemoveLinks {
			il, ok := t.graph.RemoveLink(l)
			if !ok {
				push(removed)
				return rollback(fmt.Errorf("remove link %s: %w", l, domain.ErrInvalidLink))
			}
			removed.Links = append(removed.Links, il)
		}
		push(removed)
	}

	var touched []string
	if len(c.RemoveNodes) > 0 {
		removed := &RestoreNodesCmd{}
		for _, id := range c.RemoveNodes {
			rec, err := t.encode(id)
			if err == nil {
				var r *domain.NodeRemoval
				if r, err = t.graph.RemoveNode(id); err == nil {
					removed.Nodes = append(removed.Nodes, NodeSnapshot{Index: r.Index, Record: rec, Links: r.Links, Groups: r.Groups})
					touched = append(touched, id)
					continue
				}
			}
			if errors.Is(err, domain.ErrStartProtected) {
				t.logger.Warn("start node cannot be removed, skipping", "node_id", id)
				continue
			}
			push(removed)
			return rollback(fmt.Errorf("remove node %s: %w", id, err))
		}
		if len(removed.Nodes) > 0 {
			push(removed)
		}
	}

	if len(c.RemoveGroups) > 0 {
		removed := &RestoreGroupsCmd{}
		for _, id := range c.RemoveGroups {
			idx, grp, err := t.graph.RemoveGroup(id)
			if err != nil {
				push(removed)
				return rollback(fmt.Errorf("remove group %s: %w", id, err))
			}
			removed.Groups = append(removed.Groups, IndexedGroup{Index: idx, Group: grp})
		}
		push(removed)
	}

	if len(inverse) == 0 {
		return nil
	}
	if len(inverse) == 1 {
		t.record(inverse[0])
	} else {
		t.record(&BatchCmd{Commands: inverse})
	}
	t.logger.Debug("change applied",
		"create_links", len(c.CreateLinks),
		"remove_links", len(c.RemoveLinks),
		"remove_nodes", len(c.RemoveNodes),
		"remove_groups", len(c.RemoveGroups))
	t.notify("apply", touched...)
	return nil
}

func (t *Tracker) encode(id string) (codec.NodeRecord, error) {
	n, ok := t.graph.Node(id)
	if !ok {
		return codec.NodeRecord{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return codec.EncodeNode(n)
}

// Undo reverts the newest recorded command.
func (t *Tracker) Undo() error {
	if len(t.history) == 0 {
		return ErrNothingToUndo
	}
	cmd := t.history[len(t.history)-1]
	t.history = t.history[:len(t.history)-1]

	t.undoing = true
	defer func() { t.undoing = false }()

	if err := cmd.Apply(t.graph, t.logger); err != nil {
		return fmt.Errorf("undo %s: %w", cmd.Op(), err)
	}
	t.logger.Debug("undone", "op", cmd.Op())
	t.notify("undo")
	return nil
}

// CreateNode adds a node of the given kind with default properties.
func (t *Tracker) CreateNode(kind domain.NodeKind, pos domain.Vec2) (*domain.Node, error) {
	data, err := domain.NewData(kind)
	if err != nil {
		return nil, err
	}
	n := domain.NewNode(t.newID(), pos, data)
	if err := t.graph.AddNode(n); err != nil {
		return nil, err
	}
	t.record(&RemoveNodesCmd{IDs: []string{n.ID}})
	t.notify("create_node", n.ID)
	return n, nil
}

// EditNode replaces the properties of a node. The kind must not change.
// Existing links keep their stored port index and name.
func (t *Tracker) EditNode(id string, data domain.NodeData) error {
	n, ok := t.graph.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	before, err := codec.EncodeProperties(n.Data)
	if err != nil {
		return err
	}
	fresh, err := codec.CloneData(data)
	if err != nil {
		return err
	}
	if _, err := t.graph.ReplaceData(id, fresh); err != nil {
		return err
	}
	t.record(&RestorePropertiesCmd{NodeID: id, Kind: n.Kind(), Properties: before})
	t.notify("edit_node", id)
	return nil
}
