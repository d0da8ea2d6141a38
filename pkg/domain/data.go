package domain

import (
	"fmt"
	"time"
)

func outputPort() []string {
	return []string{PortOutput}
}

// StartData marks the graph anchor. It does nothing at runtime.
type StartData struct{}

func (*StartData) Kind() NodeKind        { return KindStart }
func (*StartData) OutputPorts() []string { return outputPort() }
func (*StartData) isNodeData()           {}

// TextData is a line of dialogue. Text nodes are the only text-bearing kind.
type TextData struct {
	Speaker string `prop:"speaker"`
	Text    string `prop:"text"`
}

func (*TextData) Kind() NodeKind        { return KindText }
func (*TextData) OutputPorts() []string { return outputPort() }
func (*TextData) isNodeData()           {}

// ChoiceOption is one player-selectable entry of a choice node.
type ChoiceOption struct {
	Label string `prop:"label"`
	// Port overrides the generated output port name.
	Port string `prop:"port"`
}

// PortName returns the output port name of the option at index i.
func (o ChoiceOption) PortName(i int) string {
	if o.Port != "" {
		return o.Port
	}
	return fmt.Sprintf("choice %d", i+1)
}

// ChoiceData holds the options offered to the player. Each option owns one
// output port.
type ChoiceData struct {
	Options []ChoiceOption `prop:"options"`
}

func (*ChoiceData) Kind() NodeKind { return KindChoice }
func (d *ChoiceData) OutputPorts() []string {
	ports := make([]string, len(d.Options))
	for i, o := range d.Options {
		ports[i] = o.PortName(i)
	}
	return ports
}
func (*ChoiceData) isNodeData() {}

// FlagRequirement expects a boolean flag to hold a value.
type FlagRequirement struct {
	Name  string `prop:"name"`
	Value bool   `prop:"value"`
}

// IntComparison is the operator of an integer flag requirement.
type IntComparison string

const (
	CmpEqual        IntComparison = "=="
	CmpNotEqual     IntComparison = "!="
	CmpLess         IntComparison = "<"
	CmpLessEqual    IntComparison = "<="
	CmpGreater      IntComparison = ">"
	CmpGreaterEqual IntComparison = ">="
)

// IntFlagRequirement compares an integer flag against a constant.
type IntFlagRequirement struct {
	Name  string        `prop:"name"`
	Op    IntComparison `prop:"op"`
	Value int           `prop:"value"`
}

// Holds evaluates the requirement against the current flag value.
// An empty operator means equality.
func (r IntFlagRequirement) Holds(actual int) (bool, error) {
	switch r.Op {
	case CmpEqual, "":
		return actual == r.Value, nil
	case CmpNotEqual:
		return actual != r.Value, nil
	case CmpLess:
		return actual < r.Value, nil
	case CmpLessEqual:
		return actual <= r.Value, nil
	case CmpGreater:
		return actual > r.Value, nil
	case CmpGreaterEqual:
		return actual >= r.Value, nil
	default:
		return false, fmt.Errorf("unknown comparison %q for flag %s", r.Op, r.Name)
	}
}

// ConditionData gates its linked nodes. The requirement is the conjunction of
// every listed item, trait and flag.
type ConditionData struct {
	Items    []AssetRef           `prop:"items"`
	Traits   []string             `prop:"traits"`
	Flags    []FlagRequirement    `prop:"flags"`
	IntFlags []IntFlagRequirement `prop:"int_flags"`
}

func (*ConditionData) Kind() NodeKind        { return KindCondition }
func (*ConditionData) OutputPorts() []string { return outputPort() }
func (*ConditionData) isNodeData()           {}

// RelationshipDelta changes the relationship value with a character.
type RelationshipDelta struct {
	Character AssetRef `prop:"character"`
	Delta     int      `prop:"delta"`
}

// FlagAssignment sets a boolean flag.
type FlagAssignment struct {
	Name  string `prop:"name"`
	Value bool   `prop:"value"`
}

// IntFlagOp is the operation of an integer flag change.
type IntFlagOp string

const (
	IntSet IntFlagOp = "set"
	IntAdd IntFlagOp = "add"
)

// IntFlagChange sets or increments an integer flag.
type IntFlagChange struct {
	Name  string    `prop:"name"`
	Op    IntFlagOp `prop:"op"`
	Value int       `prop:"value"`
}

// Apply returns the new flag value. An empty operator means set.
func (c IntFlagChange) Apply(current int) (int, error) {
	switch c.Op {
	case IntSet, "":
		return c.Value, nil
	case IntAdd:
		return current + c.Value, nil
	default:
		return current, fmt.Errorf("unknown int flag op %q for flag %s", c.Op, c.Name)
	}
}

// ModifierData applies unconditional state changes, in field order.
type ModifierData struct {
	Relationships []RelationshipDelta `prop:"relationships"`
	AddTraits     []string            `prop:"add_traits"`
	AddItems      []AssetRef          `prop:"add_items"`
	RemoveItems   []AssetRef          `prop:"remove_items"`
	SetFlags      []FlagAssignment    `prop:"set_flags"`
	IntFlags      []IntFlagChange     `prop:"int_flags"`
}

func (*ModifierData) Kind() NodeKind        { return KindModifier }
func (*ModifierData) OutputPorts() []string { return outputPort() }
func (*ModifierData) isNodeData()           {}

// SceneData switches the environment to a preset of a scene asset.
type SceneData struct {
	Scene  AssetRef `prop:"scene"`
	Preset string   `prop:"preset"`
}

func (*SceneData) Kind() NodeKind        { return KindScene }
func (*SceneData) OutputPorts() []string { return outputPort() }
func (*SceneData) isNodeData()           {}

// CharacterEntry places one character on screen.
type CharacterEntry struct {
	Character AssetRef `prop:"character"`
	// Emotion names a sprite registered on the character.
	Emotion string `prop:"emotion"`
	// Position names an anchor in the current scene.
	Position      string  `prop:"position"`
	Offset        Vec2    `prop:"offset"`
	Tint          Color   `prop:"tint"`
	SortLayer     int     `prop:"sort_layer"`
	Scale         float64 `prop:"scale"`
	ParallaxLayer string  `prop:"parallax_layer"`
}

// CharacterData shows or updates characters.
type CharacterData struct {
	Entries []CharacterEntry `prop:"entries"`
}

func (*CharacterData) Kind() NodeKind        { return KindCharacter }
func (*CharacterData) OutputPorts() []string { return outputPort() }
func (*CharacterData) isNodeData()           {}

// AudioKind selects the playback channel.
type AudioKind string

const (
	AudioMusic    AudioKind = "music"
	AudioAmbience AudioKind = "ambience"
	AudioSFX      AudioKind = "sfx"
)

// AudioData is an audio cue. Audio nodes are sinks and have no output port.
type AudioData struct {
	Channel AudioKind `prop:"kind"`
	Clip    AssetRef  `prop:"clip"`
	Volume  float64   `prop:"volume"`
}

func (*AudioData) Kind() NodeKind        { return KindAudio }
func (*AudioData) OutputPorts() []string { return nil }
func (*AudioData) isNodeData()           {}

// DelayData carries an authored duration.
type DelayData struct {
	Duration time.Duration `prop:"duration"`
}

func (*DelayData) Kind() NodeKind        { return KindDelay }
func (*DelayData) OutputPorts() []string { return outputPort() }
func (*DelayData) isNodeData()           {}

// Fighter is one combatant handed to a minigame.
type Fighter struct {
	Name      string   `prop:"name"`
	Character AssetRef `prop:"character"`
	Health    int      `prop:"health"`
	Attack    int      `prop:"attack"`
}

// MinigameData launches a combat minigame and branches on its outcome.
type MinigameData struct {
	Scene    AssetRef  `prop:"scene"`
	Preset   string    `prop:"preset"`
	Prefab   AssetRef  `prop:"prefab"`
	Fighters []Fighter `prop:"fighters"`
}

func (*MinigameData) Kind() NodeKind { return KindMinigame }
func (*MinigameData) OutputPorts() []string {
	return []string{PortSuccess, PortFail}
}
func (*MinigameData) isNodeData() {}
