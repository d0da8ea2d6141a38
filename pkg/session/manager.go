package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// View is what a client sees of a session after an operation.
type View struct {
	domain.Snapshot
	Graph string `json:"graph"`
	// Actions are the host requests produced by the operation, in order.
	Actions         []domain.ActionRequest `json:"actions,omitempty"`
	State           memory.StateView       `json:"state"`
	MinigameRunning bool                   `json:"minigame_running,omitempty"`
}

// live is one running playthrough. Its fields are only touched under the
// session lock.
type live struct {
	graph   string
	interp  *runtime.Interpreter
	stage   *memory.Stage
	created time.Time
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager runs live sessions, one interpreter and recording stage each, and
// serializes every operation on a session.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	loader ports.GraphLoader

	mu       sync.Mutex            // Global lock for the maps
	locks    map[string]*lockEntry // Map of active locks
	sessions map[string]*live

	locker      ports.DistributedLocker // Optional distributed locker
	lockTTL     time.Duration
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	newID       func() string
	stageOpts   []memory.StageOption
	runtimeOpts []runtime.Option
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiration.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and its interpreters.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks is passed to every interpreter.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithIDGenerator replaces uuid session ids.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}

// WithStageOptions configures the stage of every new session.
func WithStageOptions(opts ...memory.StageOption) Option {
	return func(m *Manager) {
		m.stageOpts = append(m.stageOpts, opts...)
	}
}

// WithRuntimeOptions configures the interpreter of every new session.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(m *Manager) {
		m.runtimeOpts = append(m.runtimeOpts, opts...)
	}
}

// NewManager creates a Session Manager loading graphs from loader.
func NewManager(loader ports.GraphLoader, opts ...Option) *Manager {
	m := &Manager{
		loader:   loader,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*live),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(), // Default to no-op
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "session:"+sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager) lookup(sessionID string) (*live, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// Create loads the named graph, starts a playthrough on it and returns the
// first view. Each session gets its own copy of the graph, so reloading
// the source only affects sessions created afterwards.
func (m *Manager) Create(ctx context.Context, graphName string) (View, error) {
	g, err := m.loader.Load(ctx, graphName)
	if err != nil {
		return View{}, err
	}

	id := m.newID()
	stage := memory.NewStage(append([]memory.StageOption{memory.WithStageLogger(m.logger)}, m.stageOpts...)...)
	opts := append([]runtime.Option{
		runtime.WithLogger(m.logger),
		runtime.WithSessionID(id),
		runtime.WithLifecycleHooks(m.hooks),
	}, m.runtimeOpts...)
	interp, err := runtime.New(g, runtime.Discover(stage), opts...)
	if err != nil {
		return View{}, err
	}
	s := &live{graph: graphName, interp: interp, stage: stage, created: time.Now()}

	var view View
	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		if err := interp.Start(ctx); err != nil {
			return err
		}
		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()
		view = s.view(true)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	m.logger.Info("session created", "session_id", id, "graph", graphName)
	return view, nil
}

// Get returns the current view of a session without consuming its actions.
func (m *Manager) Get(ctx context.Context, sessionID string) (View, error) {
	var view View
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.lookup(sessionID)
		if err != nil {
			return err
		}
		view = s.view(false)
		return nil
	})
	return view, err
}

// Advance sends one advance input to the session.
func (m *Manager) Advance(ctx context.Context, sessionID string) (View, error) {
	return m.step(ctx, sessionID, func(ctx context.Context, s *live) error {
		return s.interp.Advance(ctx)
	})
}

// Pick selects the choice at index among the ones offered.
func (m *Manager) Pick(ctx context.Context, sessionID string, index int) (View, error) {
	return m.step(ctx, sessionID, func(ctx context.Context, s *live) error {
		return s.stage.Pick(ctx, index)
	})
}

// CompleteMinigame reports the outcome of the running minigame.
func (m *Manager) CompleteMinigame(ctx context.Context, sessionID string, success bool) (View, error) {
	return m.step(ctx, sessionID, func(ctx context.Context, s *live) error {
		return s.stage.CompleteMinigame(success)
	})
}

// Restart runs the session from its start node again.
func (m *Manager) Restart(ctx context.Context, sessionID string) (View, error) {
	return m.step(ctx, sessionID, func(ctx context.Context, s *live) error {
		return s.interp.Start(ctx)
	})
}

func (m *Manager) step(ctx context.Context, sessionID string, fn func(context.Context, *live) error) (View, error) {
	var view View
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.lookup(sessionID)
		if err != nil {
			return err
		}
		if err := fn(ctx, s); err != nil {
			return err
		}
		view = s.view(true)
		return nil
	})
	return view, err
}

// Delete ends a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.sessions[sessionID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		delete(m.sessions, sessionID)
		return nil
	})
}

// List returns the ids of the live sessions, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Loader returns the graph source of new sessions.
func (m *Manager) Loader() ports.GraphLoader {
	return m.loader
}

func (s *live) view(drain bool) View {
	v := View{
		Snapshot:        s.interp.Snapshot(),
		Graph:           s.graph,
		State:           s.stage.View(),
		MinigameRunning: s.stage.MinigameRunning(),
	}
	if drain {
		v.Actions = s.stage.Drain()
	}
	return v
}
