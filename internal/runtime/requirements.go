package runtime

import (
	"github.com/aretw0/arbor/pkg/domain"
)

// evaluate reports whether every requirement of a condition holds.
// A requirement whose store is missing is unmet.
func (i *Interpreter) evaluate(n *domain.Node, d *domain.ConditionData) bool {
	c := i.collab

	if len(d.Items) > 0 {
		if c.Inventory == nil {
			i.missing(n, "inventory")
			return false
		}
		for _, item := range d.Items {
			if !c.Inventory.HasItem(item) {
				return false
			}
		}
	}
	if len(d.Traits) > 0 {
		if c.Traits == nil {
			i.missing(n, "traits")
			return false
		}
		for _, t := range d.Traits {
			if !c.Traits.HasTrait(t) {
				return false
			}
		}
	}
	if len(d.Flags) > 0 {
		if c.Flags == nil {
			i.missing(n, "flags")
			return false
		}
		for _, f := range d.Flags {
			if c.Flags.GetFlag(f.Name) != f.Value {
				return false
			}
		}
	}
	if len(d.IntFlags) > 0 {
		if c.IntFlags == nil {
			i.missing(n, "int_flags")
			return false
		}
		for _, r := range d.IntFlags {
			ok, err := r.Holds(c.IntFlags.GetInt(r.Name))
			if err != nil {
				i.logger.Warn("invalid int flag requirement", "node_id", n.ID, "err", err)
				return false
			}
			if !ok {
				return false
			}
		}
	}
	return true
}

// needs lists the collaborators a node cannot work without.
func needs(n *domain.Node) []string {
	var out []string
	switch d := n.Data.(type) {
	case *domain.TextData:
		out = append(out, "dialogue")
	case *domain.ChoiceData:
		out = append(out, "choices")
	case *domain.ConditionData:
		if len(d.Items) > 0 {
			out = append(out, "inventory")
		}
		if len(d.Traits) > 0 {
			out = append(out, "traits")
		}
		if len(d.Flags) > 0 {
			out = append(out, "flags")
		}
		if len(d.IntFlags) > 0 {
			out = append(out, "int_flags")
		}
	case *domain.ModifierData:
		if len(d.Relationships) > 0 {
			out = append(out, "relationships")
		}
		if len(d.AddTraits) > 0 {
			out = append(out, "traits")
		}
		if len(d.AddItems) > 0 || len(d.RemoveItems) > 0 {
			out = append(out, "inventory")
		}
		if len(d.SetFlags) > 0 {
			out = append(out, "flags")
		}
		if len(d.IntFlags) > 0 {
			out = append(out, "int_flags")
		}
	case *domain.SceneData:
		out = append(out, "environment")
	case *domain.CharacterData:
		out = append(out, "environment")
		for _, e := range d.Entries {
			if e.Emotion != "" {
				out = append(out, "characters")
				break
			}
		}
	case *domain.AudioData:
		out = append(out, "audio")
	case *domain.MinigameData:
		out = append(out, "minigames")
		if !d.Scene.IsZero() {
			out = append(out, "environment")
		}
	}
	return out
}

func (c Collaborators) has(name string) bool {
	switch name {
	case "dialogue":
		return c.Dialogue != nil
	case "choices":
		return c.Choices != nil
	case "environment":
		return c.Environment != nil
	case "characters":
		return c.Characters != nil
	case "audio":
		return c.Audio != nil
	case "minigames":
		return c.Minigames != nil
	case "inventory":
		return c.Inventory != nil
	case "traits":
		return c.Traits != nil
	case "flags":
		return c.Flags != nil
	case "int_flags":
		return c.IntFlags != nil
	case "relationships":
		return c.Relationships != nil
	}
	return false
}

// checkCollaborators returns the first node, in graph order, that needs a nil
// collaborator.
func checkCollaborators(g *domain.Graph, c Collaborators) error {
	for _, n := range g.Nodes() {
		for _, name := range needs(n) {
			if !c.has(name) {
				return &MissingCollaboratorError{Collaborator: name, NodeID: n.ID, Kind: n.Kind()}
			}
		}
	}
	return nil
}
