package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/arbor/pkg/domain"
	"golang.org/x/term"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// DebugHooks logs every interpreter event at debug level.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeExecute: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("Execute Node", "node_id", e.NodeID, "kind", e.NodeKind)
		},
		OnCurrentChange: func(ctx context.Context, e *domain.CurrentEvent) {
			logger.Debug("Current Changed", "from", e.From, "to", e.To)
		},
		OnChoicePicked: func(ctx context.Context, e *domain.ChoiceEvent) {
			logger.Debug("Choice Picked", "node_id", e.NodeID, "label", e.Label, "port", e.Port)
		},
		OnMinigameComplete: func(ctx context.Context, e *domain.MinigameEvent) {
			logger.Debug("Minigame Complete", "node_id", e.NodeID, "success", e.Success)
		},
		OnDelay: func(ctx context.Context, e *domain.DelayEvent) {
			logger.Debug("Delay", "node_id", e.NodeID, "duration", e.Duration)
		},
	}
}
