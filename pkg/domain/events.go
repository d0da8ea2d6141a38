package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeExecute      EventType = "node_execute"
	EventCurrentChange    EventType = "current_change"
	EventChoicePicked     EventType = "choice_picked"
	EventMinigameComplete EventType = "minigame_complete"
	EventDelay            EventType = "delay"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeEvent reports a node dispatched by the interpreter.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeKind NodeKind `json:"node_kind"`
}

// CurrentEvent reports a change of the interpreter's resting node.
type CurrentEvent struct {
	EventBase
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// ChoiceEvent reports a player pick.
type ChoiceEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
	Port   string `json:"port"`
}

// MinigameEvent reports the outcome of a minigame.
type MinigameEvent struct {
	EventBase
	NodeID  string `json:"node_id"`
	Success bool   `json:"success"`
}

// DelayEvent reports a delay node and its authored duration.
type DelayEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for interpreter observability.
// Every field is optional.
type LifecycleHooks struct {
	OnNodeExecute      func(context.Context, *NodeEvent)
	OnCurrentChange    func(context.Context, *CurrentEvent)
	OnChoicePicked     func(context.Context, *ChoiceEvent)
	OnMinigameComplete func(context.Context, *MinigameEvent)
	OnDelay            func(context.Context, *DelayEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeExecute:      chain(h.OnNodeExecute, other.OnNodeExecute),
		OnCurrentChange:    chain(h.OnCurrentChange, other.OnCurrentChange),
		OnChoicePicked:     chain(h.OnChoicePicked, other.OnChoicePicked),
		OnMinigameComplete: chain(h.OnMinigameComplete, other.OnMinigameComplete),
		OnDelay:            chain(h.OnDelay, other.OnDelay),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
