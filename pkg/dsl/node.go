package dsl

import (
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

func dataOf[T domain.NodeData](n *NodeBuilder, method string) (T, bool) {
	d, ok := n.node.Data.(T)
	if !ok {
		n.builder.fail("node %s: %s used on a %q node", n.node.ID, method, n.node.Kind())
	}
	return d, ok
}

// At sets the authoring position.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Vec2{X: x, Y: y}
	return n
}

// Start marks the node as the graph anchor.
func (n *NodeBuilder) Start() *NodeBuilder {
	n.node.Data = &domain.StartData{}
	return n
}

// Text marks the node as a line of dialogue.
func (n *NodeBuilder) Text(text string) *NodeBuilder {
	n.node.Data = &domain.TextData{Text: text}
	return n
}

// Speaker sets the speaker name of a text node.
func (n *NodeBuilder) Speaker(name string) *NodeBuilder {
	if d, ok := dataOf[*domain.TextData](n, "Speaker"); ok {
		d.Speaker = name
	}
	return n
}

// Choice marks the node as a choice with one option per label.
func (n *NodeBuilder) Choice(labels ...string) *NodeBuilder {
	d := &domain.ChoiceData{}
	for _, l := range labels {
		d.Options = append(d.Options, domain.ChoiceOption{Label: l})
	}
	n.node.Data = d
	return n
}

// Option appends an option with an explicit port name.
func (n *NodeBuilder) Option(label, port string) *NodeBuilder {
	if d, ok := dataOf[*domain.ChoiceData](n, "Option"); ok {
		d.Options = append(d.Options, domain.ChoiceOption{Label: label, Port: port})
	}
	return n
}

// Pick links the option with the given label to the target.
func (n *NodeBuilder) Pick(label, target string) *NodeBuilder {
	d, ok := dataOf[*domain.ChoiceData](n, "Pick")
	if !ok {
		return n
	}
	for i, opt := range d.Options {
		if opt.Label == label {
			n.builder.link(n.node.ID, opt.PortName(i), i, target)
			return n
		}
	}
	n.builder.fail("node %s: no option %q", n.node.ID, label)
	return n
}

// Condition marks the node as a condition with no requirement yet.
func (n *NodeBuilder) Condition() *NodeBuilder {
	n.node.Data = &domain.ConditionData{}
	return n
}

// RequireItem adds an inventory requirement.
func (n *NodeBuilder) RequireItem(item string) *NodeBuilder {
	if d, ok := dataOf[*domain.ConditionData](n, "RequireItem"); ok {
		d.Items = append(d.Items, domain.Asset(item))
	}
	return n
}

// RequireTrait adds a trait requirement.
func (n *NodeBuilder) RequireTrait(trait string) *NodeBuilder {
	if d, ok := dataOf[*domain.ConditionData](n, "RequireTrait"); ok {
		d.Traits = append(d.Traits, trait)
	}
	return n
}

// RequireFlag adds a boolean flag requirement.
func (n *NodeBuilder) RequireFlag(name string, value bool) *NodeBuilder {
	if d, ok := dataOf[*domain.ConditionData](n, "RequireFlag"); ok {
		d.Flags = append(d.Flags, domain.FlagRequirement{Name: name, Value: value})
	}
	return n
}

// RequireInt adds an integer flag comparison.
func (n *NodeBuilder) RequireInt(name string, op domain.IntComparison, value int) *NodeBuilder {
	if d, ok := dataOf[*domain.ConditionData](n, "RequireInt"); ok {
		d.IntFlags = append(d.IntFlags, domain.IntFlagRequirement{Name: name, Op: op, Value: value})
	}
	return n
}

// Modifier marks the node as a state modifier with no change yet.
func (n *NodeBuilder) Modifier() *NodeBuilder {
	n.node.Data = &domain.ModifierData{}
	return n
}

// Relate changes the relationship with a character.
func (n *NodeBuilder) Relate(character string, delta int) *NodeBuilder {
	if d, ok := dataOf[*domain.ModifierData](n, "Relate"); ok {
		d.Relationships = append(d.Relationships, domain.RelationshipDelta{Character: domain.Asset(character), Delta: delta})
	}
	return n
}

// AddTrait grants a trait.
func (n *NodeBuilder) AddTrait(trait string) *NodeBuilder {
	if d, ok := dataOf[*domain.ModifierData](n, "AddTrait"); ok {
		d.AddTraits = append(d.AddTraits, trait)
	}
	return n
}

// AddItem grants an item.
func (n *NodeBuilder) AddItem(item string) *NodeBuilder {
	if d, ok := dataOf[*domain.ModifierData](n, "AddItem"); ok {
		d.AddItems = append(d.AddItems, domain.Asset(item))
	}
	return n
}

// RemoveItem takes an item away.
func (n *NodeBuilder) RemoveItem(item string) *NodeBuilder {
	if d, ok := dataOf[*domain.ModifierData](n, "RemoveItem"); ok {
		d.RemoveItems = append(d.RemoveItems, domain.Asset(item))
	}
	return n
}

// SetFlag sets a boolean flag.
func (n *NodeBuilder) SetFlag(name string, value bool) *NodeBuilder {
	if d, ok := dataOf[*domain.ModifierData](n, "SetFlag"); ok {
		d.SetFlags = append(d.SetFlags, domain.FlagAssignment{Name: name, Value: value})
	}
	return n
}

// SetInt sets an integer flag.
func (n *NodeBuilder) SetInt(name string, value int) *NodeBuilder {
	if d, ok := dataOf[*domain.ModifierData](n, "SetInt"); ok {
		d.IntFlags = append(d.IntFlags, domain.IntFlagChange{Name: name, Op: domain.IntSet, Value: value})
	}
	return n
}

// AddInt increments an integer flag.
func (n *NodeBuilder) AddInt(name string, delta int) *NodeBuilder {
	if d, ok := dataOf[*domain.ModifierData](n, "AddInt"); ok {
		d.IntFlags = append(d.IntFlags, domain.IntFlagChange{Name: name, Op: domain.IntAdd, Value: delta})
	}
	return n
}

// Scene marks the node as a scene switch.
func (n *NodeBuilder) Scene(scene, preset string) *NodeBuilder {
	n.node.Data = &domain.SceneData{Scene: domain.Asset(scene), Preset: preset}
	return n
}

// Characters marks the node as a character placement node with no entry yet.
func (n *NodeBuilder) Characters() *NodeBuilder {
	n.node.Data = &domain.CharacterData{}
	return n
}

// Show appends a character entry.
func (n *NodeBuilder) Show(entry domain.CharacterEntry) *NodeBuilder {
	if d, ok := dataOf[*domain.CharacterData](n, "Show"); ok {
		d.Entries = append(d.Entries, entry)
	}
	return n
}

// Audio marks the node as an audio cue.
func (n *NodeBuilder) Audio(channel domain.AudioKind, clip string, volume float64) *NodeBuilder {
	n.node.Data = &domain.AudioData{Channel: channel, Clip: domain.Asset(clip), Volume: volume}
	return n
}

// Delay marks the node as a delay.
func (n *NodeBuilder) Delay(d time.Duration) *NodeBuilder {
	n.node.Data = &domain.DelayData{Duration: d}
	return n
}

// Minigame marks the node as a minigame launch.
func (n *NodeBuilder) Minigame(prefab string) *NodeBuilder {
	n.node.Data = &domain.MinigameData{Prefab: domain.Asset(prefab)}
	return n
}

// Arena sets the scene shown before a minigame starts.
func (n *NodeBuilder) Arena(scene, preset string) *NodeBuilder {
	if d, ok := dataOf[*domain.MinigameData](n, "Arena"); ok {
		d.Scene = domain.Asset(scene)
		d.Preset = preset
	}
	return n
}

// Fighter adds a combatant to a minigame.
func (n *NodeBuilder) Fighter(f domain.Fighter) *NodeBuilder {
	if d, ok := dataOf[*domain.MinigameData](n, "Fighter"); ok {
		d.Fighters = append(d.Fighters, f)
	}
	return n
}

// OnSuccess links the minigame's success port to the target.
func (n *NodeBuilder) OnSuccess(target string) *NodeBuilder {
	return n.Via(domain.PortSuccess, target)
}

// OnFail links the minigame's failure port to the target.
func (n *NodeBuilder) OnFail(target string) *NodeBuilder {
	return n.Via(domain.PortFail, target)
}

// Go links the node's output port to the target.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	return n.Via(domain.PortOutput, target)
}

// Via links the named output port to the target.
func (n *NodeBuilder) Via(port, target string) *NodeBuilder {
	idx := n.node.PortIndex(port)
	if n.node.Data != nil && idx < 0 {
		n.builder.fail("node %s: no port %q", n.node.ID, port)
		return n
	}
	n.builder.link(n.node.ID, port, idx, target)
	return n
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() *domain.Node {
	node := n.node
	return &node
}
