package editor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
)

// Clipboard holds copied nodes by value, plus the links running between them.
type Clipboard struct {
	Nodes []codec.NodeRecord `json:"nodes"`
	Links []domain.Link      `json:"links,omitempty"`
}

// IsEmpty reports whether nothing was copied.
func (c Clipboard) IsEmpty() bool {
	return len(c.Nodes) == 0
}

// Copy serializes the given nodes into the clipboard, replacing its content.
// The start node is never copied.
func (t *Tracker) Copy(ids ...string) error {
	var cb Clipboard
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		n, ok := t.graph.Node(id)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
		}
		if n.Kind() == domain.KindStart {
			t.logger.Warn("start node cannot be copied, skipping", "node_id", id)
			continue
		}
		if selected[id] {
			continue
		}
		rec, err := codec.EncodeNode(n)
		if err != nil {
			return err
		}
		selected[id] = true
		cb.Nodes = append(cb.Nodes, rec)
	}
	for _, l := range t.graph.Links() {
		if !selected[l.From] || !selected[l.To] {
			continue
		}
		if r, ok := t.graph.Resolved(l); ok {
			cb.Links = append(cb.Links, r)
		}
	}
	t.clipboard = cb
	t.logger.Debug("copied", "nodes", len(cb.Nodes), "links", len(cb.Links))
	return nil
}

// Clipboard returns the current clipboard content.
func (t *Tracker) Clipboard() Clipboard {
	return t.clipboard
}

// ClipboardJSON exports the clipboard.
func (t *Tracker) ClipboardJSON() ([]byte, error) {
	if t.clipboard.IsEmpty() {
		return nil, ErrEmptyClipboard
	}
	return json.Marshal(t.clipboard)
}

// PasteJSON replaces the clipboard with exported content and pastes it.
func (t *Tracker) PasteJSON(data []byte) ([]string, error) {
	var cb Clipboard
	if err := json.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("invalid clipboard: %w", err)
	}
	t.clipboard = cb
	return t.Paste()
}

// Paste creates fresh copies of the clipboard nodes, shifted by the paste
// offset, and returns their ids in clipboard order. Copied links are
// recreated between the copies. One Undo removes everything pasted.
func (t *Tracker) Paste() ([]string, error) {
	if t.clipboard.IsEmpty() {
		return nil, ErrEmptyClipboard
	}

	renamed := make(map[string]string, len(t.clipboard.Nodes))
	var ids []string
	undo := &RemoveNodesCmd{}
	abort := func(cause error) ([]string, error) {
		if err := undo.Apply(t.graph, t.logger); err != nil {
			return nil, errors.Join(cause, fmt.Errorf("rollback failed: %w", err))
		}
		return nil, cause
	}

	for _, rec := range t.clipboard.Nodes {
		// Decoding builds new payload values; nothing is shared with the source.
		n, err := codec.DecodeNode(rec)
		if err != nil {
			return abort(err)
		}
		n.ID = t.newID()
		n.Position = n.Position.Add(t.offset)
		if err := t.graph.AddNode(n); err != nil {
			return abort(fmt.Errorf("paste %s: %w", rec.ID, err))
		}
		renamed[rec.ID] = n.ID
		ids = append(ids, n.ID)
		undo.IDs = append(undo.IDs, n.ID)
	}
	for _, l := range t.clipboard.Links {
		l.From, l.To = renamed[l.From], renamed[l.To]
		if err := t.graph.AddLink(l); err != nil {
			t.logger.Warn("cannot paste link", "link", l.String(), "err", err)
		}
	}

	t.record(undo)
	t.logger.Debug("pasted", "nodes", len(ids))
	t.notify("paste", ids...)
	return ids, nil
}
