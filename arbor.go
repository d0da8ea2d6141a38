package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/aretw0/loam"
)

// Version is the release of the library and the arbor command.
var Version = "v0.1.0-dev"

// MissingCollaboratorError is returned by Start and Run when the host lacks
// a collaborator the graph needs.
type MissingCollaboratorError = runtime.MissingCollaboratorError

// Engine is the high-level entry point for the arbor library.
// It loads story graphs and starts playthroughs on a host.
type Engine struct {
	loader      ports.GraphLoader
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.Option
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom GraphLoader, bypassing the default Loam initialization.
func WithLoader(l ports.GraphLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLogger sets the logger of the engine and its playthroughs.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls add up.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMissingCollaborators lets playthroughs start on hosts that lack a
// collaborator the graph needs; the affected nodes are logged and skipped.
func WithMissingCollaborators() Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMissingCollaborators())
	}
}

// WithDelayFunc replaces how delay nodes wait. Hosts that drive their own
// clock pass a function that schedules instead of sleeping.
func WithDelayFunc(wait func(context.Context, time.Duration) error) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDelayFunc(wait))
	}
}

// New creates an Engine reading graphs from the Loam repository at repoPath,
// unless WithLoader is given.
func New(repoPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		absPath, err := filepath.Abs(repoPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)

		// The engine never modifies authored documents.
		repo, err := loam.Init(absPath, loam.WithReadOnly(true))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}
		eng.loader = loamAdapter.New(loam.NewTypedRepository[loamAdapter.NodeMetadata](repo))
	} else if repoPath != "" {
		eng.Name = filepath.Base(repoPath)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("engine", eng.Name)
	}
	return eng, nil
}

// Loader returns the graph source.
func (e *Engine) Loader() ports.GraphLoader {
	return e.loader
}

// Graphs lists the available graph names.
func (e *Engine) Graphs(ctx context.Context) ([]string, error) {
	return e.loader.List(ctx)
}

// Load returns a fresh copy of the named graph.
func (e *Engine) Load(ctx context.Context, name string) (*domain.Graph, error) {
	return e.loader.Load(ctx, name)
}

// Start loads the named graph and runs it on host from its start node.
// The host implements any subset of the ports collaborator interfaces;
// memory.Stage implements all of them.
func (e *Engine) Start(ctx context.Context, graphName string, host any) (*Playthrough, error) {
	g, err := e.loader.Load(ctx, graphName)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, g, host)
}

// Run starts a playthrough of an already loaded graph.
func (e *Engine) Run(ctx context.Context, g *domain.Graph, host any) (*Playthrough, error) {
	opts := append([]runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}, e.runtimeOpts...)
	interp, err := runtime.New(g, runtime.Discover(host), opts...)
	if err != nil {
		return nil, err
	}
	if err := interp.Start(ctx); err != nil {
		return nil, err
	}
	return &Playthrough{interp: interp}, nil
}

// Sessions returns a session manager over the engine's graphs, sharing its
// logger and hooks.
func (e *Engine) Sessions(opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithLogger(e.logger),
		session.WithLifecycleHooks(e.hooks),
		session.WithRuntimeOptions(e.runtimeOpts...),
	}
	return session.NewManager(e.loader, append(base, opts...)...)
}

// Playthrough is one run of a graph on a host.
// Like the host's callbacks, it must be driven from one goroutine.
type Playthrough struct {
	interp *runtime.Interpreter
}

// Advance moves past the current line. It is ignored while choices are
// offered; picks go through the host's choice registry.
func (p *Playthrough) Advance(ctx context.Context) error {
	return p.interp.Advance(ctx)
}

// Restart runs the graph from its start node again.
func (p *Playthrough) Restart(ctx context.Context) error {
	return p.interp.Start(ctx)
}

// Snapshot returns the observable state.
func (p *Playthrough) Snapshot() domain.Snapshot {
	return p.interp.Snapshot()
}

// Graph returns the graph being played.
func (p *Playthrough) Graph() *domain.Graph {
	return p.interp.Graph()
}
