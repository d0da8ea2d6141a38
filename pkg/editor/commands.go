package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
)

// Command is a recorded inverse of one structural change. Commands are plain
// values: they can be inspected, serialized with EncodeCommand and applied to
// any graph holding the same ids.
type Command interface {
	// Op names the command in its serialized form.
	Op() string
	// Apply runs the command against g.
	Apply(g *domain.Graph, logger *slog.Logger) error
}

const (
	OpRemoveLinks       = "remove_links"
	OpRestoreLinks      = "restore_links"
	OpRemoveNodes       = "remove_nodes"
	OpRestoreNodes      = "restore_nodes"
	OpRestoreGroups     = "restore_groups"
	OpRestoreProperties = "restore_properties"
	OpBatch             = "batch"
)

// RemoveLinksCmd deletes links by identity. It undoes link creation.
type RemoveLinksCmd struct {
	Links []domain.Link `json:"links"`
}

func (c *RemoveLinksCmd) Op() string { return OpRemoveLinks }

func (c *RemoveLinksCmd) Apply(g *domain.Graph, logger *slog.Logger) error {
	for _, l := range c.Links {
		if _, ok := g.RemoveLink(l); !ok {
			logger.Warn("link already gone", "link", l.String())
		}
	}
	return nil
}

// RestoreLinksCmd puts removed links back at their former positions.
// Links are listed in removal order and restored last to first.
type RestoreLinksCmd struct {
	Links []domain.IndexedLink `json:"links"`
}

func (c *RestoreLinksCmd) Op() string { return OpRestoreLinks }

func (c *RestoreLinksCmd) Apply(g *domain.Graph, logger *slog.Logger) error {
	for i := len(c.Links) - 1; i >= 0; i-- {
		restoreLink(g, logger, c.Links[i])
	}
	return nil
}

// restoreLink reconnects by stored port index, then by port name. A link
// whose port is gone from the rebuilt node is dropped.
func restoreLink(g *domain.Graph, logger *slog.Logger, il domain.IndexedLink) {
	err := g.InsertLink(il.Index, il.Link)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateLink):
		logger.Debug("link already present", "link", il.Link.String())
	default:
		logger.Warn("cannot restore link", "link", il.Link.String(), "err", err)
	}
}

// RemoveNodesCmd deletes nodes and everything attached to them. It undoes
// node creation and paste.
type RemoveNodesCmd struct {
	IDs []string `json:"ids"`
}

func (c *RemoveNodesCmd) Op() string { return OpRemoveNodes }

func (c *RemoveNodesCmd) Apply(g *domain.Graph, logger *slog.Logger) error {
	for _, id := range c.IDs {
		if _, err := g.RemoveNode(id); err != nil {
			if errors.Is(err, domain.ErrNodeNotFound) {
				logger.Warn("node already gone", "node_id", id)
				continue
			}
			return err
		}
	}
	return nil
}

// NodeSnapshot is everything needed to rebuild a removed node.
type NodeSnapshot struct {
	Index  int                  `json:"index"`
	Record codec.NodeRecord     `json:"record"`
	Links  []domain.IndexedLink `json:"links,omitempty"`
	Groups []domain.Membership  `json:"groups,omitempty"`
}

// RestoreNodesCmd rebuilds removed nodes with their ids. Each node is
// recreated from its properties, then its links, then its group slots.
// Nodes are listed in removal order and restored last to first.
type RestoreNodesCmd struct {
	Nodes []NodeSnapshot `json:"nodes"`
}

func (c *RestoreNodesCmd) Op() string { return OpRestoreNodes }

func (c *RestoreNodesCmd) Apply(g *domain.Graph, logger *slog.Logger) error {
	for i := len(c.Nodes) - 1; i >= 0; i-- {
		s := c.Nodes[i]
		n, err := codec.DecodeNode(s.Record)
		if err != nil {
			return err
		}
		if err := g.InsertNode(s.Index, n); err != nil {
			return fmt.Errorf("restore node %s: %w", n.ID, err)
		}
		// Ascending indices: each insert sees the list as it was at removal.
		for _, il := range s.Links {
			restoreLink(g, logger, il)
		}
		for _, m := range s.Groups {
			if err := g.AttachToGroup(m.GroupID, n.ID, m.Index); err != nil {
				logger.Warn("cannot restore group membership", "node_id", n.ID, "group_id", m.GroupID, "err", err)
			}
		}
	}
	return nil
}

// IndexedGroup remembers where a group sat.
type IndexedGroup struct {
	Index int          `json:"index"`
	Group domain.Group `json:"group"`
}

// RestoreGroupsCmd puts removed groups back, last to first. Members that no
// longer exist are left out.
type RestoreGroupsCmd struct {
	Groups []IndexedGroup `json:"groups"`
}

func (c *RestoreGroupsCmd) Op() string { return OpRestoreGroups }

func (c *RestoreGroupsCmd) Apply(g *domain.Graph, logger *slog.Logger) error {
	for i := len(c.Groups) - 1; i >= 0; i-- {
		ig := c.Groups[i]
		grp := ig.Group
		grp.Nodes = nil
		for _, id := range ig.Group.Nodes {
			if _, ok := g.Node(id); ok {
				grp.Nodes = append(grp.Nodes, id)
			} else {
				logger.Warn("group member missing", "group_id", grp.ID, "node_id", id)
			}
		}
		if err := g.InsertGroup(ig.Index, grp); err != nil {
			return fmt.Errorf("restore group %s: %w", grp.ID, err)
		}
	}
	return nil
}

// RestorePropertiesCmd puts back the authored properties of a node.
type RestorePropertiesCmd struct {
	NodeID     string           `json:"node_id"`
	Kind       domain.NodeKind  `json:"kind"`
	Properties []codec.Property `json:"properties"`
}

func (c *RestorePropertiesCmd) Op() string { return OpRestoreProperties }

func (c *RestorePropertiesCmd) Apply(g *domain.Graph, logger *slog.Logger) error {
	data, err := codec.DecodeProperties(c.Kind, c.Properties)
	if err != nil {
		return err
	}
	_, err = g.ReplaceData(c.NodeID, data)
	return err
}

// BatchCmd runs commands in order and stops at the first failure.
type BatchCmd struct {
	Commands []Command `json:"-"`
}

func (c *BatchCmd) Op() string { return OpBatch }

func (c *BatchCmd) Apply(g *domain.Graph, logger *slog.Logger) error {
	for _, cmd := range c.Commands {
		if err := cmd.Apply(g, logger); err != nil {
			return fmt.Errorf("%s: %w", cmd.Op(), err)
		}
	}
	return nil
}

// envelope is the serialized form of a command.
type envelope struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

type batchArgs struct {
	Commands []json.RawMessage `json:"commands"`
}

// EncodeCommand serializes a command.
func EncodeCommand(cmd Command) ([]byte, error) {
	var args any = cmd
	if b, ok := cmd.(*BatchCmd); ok {
		ba := batchArgs{Commands: make([]json.RawMessage, 0, len(b.Commands))}
		for _, inner := range b.Commands {
			raw, err := EncodeCommand(inner)
			if err != nil {
				return nil, err
			}
			ba.Commands = append(ba.Commands, raw)
		}
		args = ba
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", cmd.Op(), err)
	}
	return json.Marshal(envelope{Op: cmd.Op(), Args: raw})
}

// DecodeCommand parses a command produced by EncodeCommand.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode command: %w", err)
	}

	var cmd Command
	switch env.Op {
	case OpRemoveLinks:
		cmd = &RemoveLinksCmd{}
	case OpRestoreLinks:
		cmd = &RestoreLinksCmd{}
	case OpRemoveNodes:
		cmd = &RemoveNodesCmd{}
	case OpRestoreNodes:
		cmd = &RestoreNodesCmd{}
	case OpRestoreGroups:
		cmd = &RestoreGroupsCmd{}
	case OpRestoreProperties:
		cmd = &RestorePropertiesCmd{}
	case OpBatch:
		var ba batchArgs
		if err := json.Unmarshal(env.Args, &ba); err != nil {
			return nil, fmt.Errorf("failed to decode batch: %w", err)
		}
		b := &BatchCmd{}
		for _, raw := range ba.Commands {
			inner, err := DecodeCommand(raw)
			if err != nil {
				return nil, err
			}
			b.Commands = append(b.Commands, inner)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown command %q", env.Op)
	}
	if err := json.Unmarshal(env.Args, cmd); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Op, err)
	}
	return cmd, nil
}
