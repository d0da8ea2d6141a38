// Package runtime walks a story graph one player input at a time.
//
// The Interpreter holds the current text node, consumes advance signals,
// resolves the next batch of nodes and dispatches each of them to its
// handler, which talks to the host through the collaborators in pkg/ports.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tracer"
)

// Collaborators groups the host services the node handlers call.
// A nil field is a missing collaborator.
type Collaborators struct {
	Dialogue      ports.DialogueSurface
	Choices       ports.ChoiceRegistry
	Environment   ports.Environment
	Characters    ports.CharacterCatalog
	Audio         ports.AudioPlayer
	Minigames     ports.MinigameLauncher
	Inventory     ports.Inventory
	Traits        ports.Traits
	Flags         ports.Flags
	IntFlags      ports.IntFlags
	Relationships ports.Relationships
}

var _ ports.Player = (*Interpreter)(nil)

// Interpreter is the runtime state machine of one playthrough.
// It only reads the graph. It is not safe for concurrent use.
type Interpreter struct {
	tracer       *tracer.Tracer
	collab       Collaborators
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	allowMissing bool
	sessionID    string
	now          func() time.Time
	wait         func(context.Context, time.Duration) error

	current   string
	status    domain.Status
	resolving bool
	history   []string

	// choices are the labels currently offered; choiceGen invalidates
	// continuations of superseded registrations.
	choices   []string
	choiceGen int

	// deferred holds resumes delivered while a pass was resolving.
	deferred []func(context.Context)
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(i *Interpreter) {
		i.hooks = i.hooks.Merge(hooks)
	}
}

// WithMissingCollaborators lets New accept a graph whose nodes need a nil
// collaborator. The affected handlers log and skip their work instead.
func WithMissingCollaborators() Option {
	return func(i *Interpreter) {
		i.allowMissing = true
	}
}

// WithSessionID labels snapshots and log lines.
func WithSessionID(id string) Option {
	return func(i *Interpreter) {
		i.sessionID = id
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) {
		if now != nil {
			i.now = now
		}
	}
}

// WithDelayFunc makes delay nodes block on wait. Without it a delay only
// fires OnDelay and takes no time.
func WithDelayFunc(wait func(context.Context, time.Duration) error) Option {
	return func(i *Interpreter) {
		i.wait = wait
	}
}

// Sleep waits for d or until ctx is done. It is meant for WithDelayFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New creates an interpreter over a graph. It fails with
// *MissingCollaboratorError when a node needs a collaborator that is nil,
// unless WithMissingCollaborators is given.
func New(g *domain.Graph, collab Collaborators, opts ...Option) (*Interpreter, error) {
	tr, err := tracer.New(g)
	if err != nil {
		return nil, err
	}
	i := &Interpreter{
		tracer: tr,
		collab: collab,
		logger: logging.NewNop(),
		status: domain.StatusIdle,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.sessionID != "" {
		i.logger = i.logger.With("session_id", i.sessionID)
	}

	if err := checkCollaborators(g, collab); err != nil {
		if !i.allowMissing {
			return nil, err
		}
		i.logger.Warn("running with missing collaborators", "err", err)
	}
	return i, nil
}

// Start executes every node linked from the start node. Calling it again
// restarts the playthrough.
func (i *Interpreter) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i.resolving {
		i.logger.Debug("start ignored while resolving")
		return nil
	}

	i.setCurrent(ctx, "")
	i.history = nil
	i.deferred = nil
	i.clearChoices()

	nodes, err := i.tracer.AdjacentFromStart()
	if err != nil {
		return err
	}
	i.logger.Debug("starting", "nodes", len(nodes))
	i.runPass(ctx, nodes)
	return nil
}

// Advance consumes one advance signal. It is ignored while a pass is
// resolving, while choices are pending and when there is no current node.
func (i *Interpreter) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case i.resolving:
		i.logger.Debug("advance ignored while resolving")
		return nil
	case i.status == domain.StatusAwaitingChoice:
		i.logger.Debug("advance ignored while choices are pending")
		return nil
	case i.current == "":
		i.logger.Debug("advance ignored without current node")
		return nil
	}

	nodes, err := i.tracer.Connected(i.current, domain.AllPorts)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		i.logger.Debug("terminal branch reached", "node_id", i.current)
		i.setCurrent(ctx, "")
		i.settle()
		return nil
	}
	i.logger.Debug("advancing", "from", i.current, "nodes", len(nodes))
	i.runPass(ctx, nodes)
	return nil
}

// Current returns the id of the current text node, or "".
func (i *Interpreter) Current() string {
	return i.current
}

// Status returns the state machine status.
func (i *Interpreter) Status() domain.Status {
	return i.status
}

// Snapshot returns a read-only view of the interpreter.
func (i *Interpreter) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		SessionID:     i.sessionID,
		CurrentNodeID: i.current,
		Status:        i.status,
		Choices:       append([]string(nil), i.choices...),
		History:       append([]string(nil), i.history...),
	}
}

// Graph returns the graph being interpreted.
func (i *Interpreter) Graph() *domain.Graph {
	return i.tracer.Graph()
}

func (i *Interpreter) setCurrent(ctx context.Context, id string) {
	if id == i.current {
		return
	}
	from := i.current
	i.current = id
	if id != "" {
		i.history = append(i.history, id)
	}
	if i.hooks.OnCurrentChange != nil {
		i.hooks.OnCurrentChange(ctx, &domain.CurrentEvent{
			EventBase: i.event(domain.EventCurrentChange),
			From:      from,
			To:        id,
		})
	}
}

func (i *Interpreter) settle() {
	switch {
	case len(i.choices) > 0:
		i.status = domain.StatusAwaitingChoice
	case i.current != "":
		i.status = domain.StatusAwaitingAdvance
	default:
		i.status = domain.StatusIdle
	}
}

// resume runs fn now, or after the pass in progress.
func (i *Interpreter) resume(ctx context.Context, fn func(context.Context)) {
	if i.resolving {
		i.deferred = append(i.deferred, fn)
		return
	}
	fn(ctx)
}

func (i *Interpreter) drain(ctx context.Context) {
	for len(i.deferred) > 0 && !i.resolving {
		fn := i.deferred[0]
		i.deferred = i.deferred[1:]
		fn(ctx)
	}
}

func (i *Interpreter) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: i.now(), Type: t}
}

// Discover fills the collaborators a host implements. A host that
// implements none of them yields empty Collaborators.
func Discover(host any) Collaborators {
	var c Collaborators
	c.Dialogue, _ = host.(ports.DialogueSurface)
	c.Choices, _ = host.(ports.ChoiceRegistry)
	c.Environment, _ = host.(ports.Environment)
	c.Characters, _ = host.(ports.CharacterCatalog)
	c.Audio, _ = host.(ports.AudioPlayer)
	c.Minigames, _ = host.(ports.MinigameLauncher)
	c.Inventory, _ = host.(ports.Inventory)
	c.Traits, _ = host.(ports.Traits)
	c.Flags, _ = host.(ports.Flags)
	c.IntFlags, _ = host.(ports.IntFlags)
	c.Relationships, _ = host.(ports.Relationships)
	return c
}
