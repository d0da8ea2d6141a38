package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
)

// PlayOptions configures a console playthrough.
type PlayOptions struct {
	Graph string
	// Watch restarts the playthrough when the source changes.
	Watch  bool
	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
	// Renderer options, e.g. tui.WithPlain() when Out is not a terminal.
	RenderOptions []tui.Option
	// SessionOptions are appended to the defaults.
	SessionOptions []session.Option
}

// Play runs one graph in the console until it ends, the input closes or ctx
// is cancelled.
//
// Input: an empty line advances, a number picks a choice, "w"/"l" win or
// lose a running minigame, "r" restarts and "q" quits.
func Play(ctx context.Context, loader ports.GraphLoader, opts PlayOptions) error {
	renderer, err := tui.NewRenderer(opts.Out, opts.RenderOptions...)
	if err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr := session.NewManager(loader, append([]session.Option{
		session.WithLogger(logger),
		session.WithIDGenerator(consoleIDs()),
		session.WithLifecycleHooks(DebugHooks(logger)),
	}, opts.SessionOptions...)...)

	var reloads <-chan struct{}
	if opts.Watch {
		watchable, ok := loader.(ports.Watchable)
		if !ok {
			return fmt.Errorf("source cannot be watched")
		}
		if reloads, err = watchable.Watch(ctx); err != nil {
			return err
		}
	}

	lines := readLines(ctx, opts.In)
	view, err := mgr.Create(ctx, opts.Graph)
	if err != nil {
		return err
	}

	for {
		if err := renderer.Render(view.Actions); err != nil {
			return err
		}
		if view.Status == domain.StatusIdle && !view.MinigameRunning {
			renderer.Notice("Finished at '%s' node.", lastVisited(view))
			if !opts.Watch {
				return nil
			}
		}
		prompt(opts.Out, view)

		select {
		case <-ctx.Done():
			renderer.Notice("Interrupted at '%s' node.", lastVisited(view))
			return nil

		case _, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			logger.Info("Source changed, restarting", "graph", opts.Graph)
			renderer.Notice("Reloading '%s'...", opts.Graph)
			next, err := mgr.Create(ctx, opts.Graph)
			if err != nil {
				// Keep playing the old version until the source is fixed.
				renderer.Notice("Reload failed: %v", err)
				view.Actions = nil
				continue
			}
			_ = mgr.Delete(ctx, view.SessionID)
			view = next

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			next, quit, err := apply(ctx, mgr, view, strings.TrimSpace(line))
			if quit {
				return nil
			}
			if err != nil {
				if errors.Is(err, memory.ErrNoSuchChoice) || errors.Is(err, memory.ErrNoMinigame) || errors.Is(err, errBadInput) {
					renderer.Notice("%v", err)
					view.Actions = nil
					continue
				}
				return err
			}
			view = next
		}
	}
}

var errBadInput = errors.New("unrecognized input")

func consoleIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("console-%d", n)
	}
}

func apply(ctx context.Context, mgr *session.Manager, view session.View, input string) (session.View, bool, error) {
	id := view.SessionID
	switch {
	case input == "q":
		return view, true, nil
	case input == "r":
		v, err := mgr.Restart(ctx, id)
		return v, false, err
	case view.MinigameRunning:
		switch input {
		case "w":
			v, err := mgr.CompleteMinigame(ctx, id, true)
			return v, false, err
		case "l":
			v, err := mgr.CompleteMinigame(ctx, id, false)
			return v, false, err
		}
		return view, false, fmt.Errorf("%w: type w or l", errBadInput)
	case view.Status == domain.StatusAwaitingChoice:
		n, err := strconv.Atoi(input)
		if err != nil {
			return view, false, fmt.Errorf("%w: type a choice number", errBadInput)
		}
		v, err := mgr.Pick(ctx, id, n-1)
		return v, false, err
	case input == "":
		v, err := mgr.Advance(ctx, id)
		return v, false, err
	}
	return view, false, fmt.Errorf("%w: %q", errBadInput, input)
}

func lastVisited(view session.View) string {
	if view.CurrentNodeID != "" || len(view.History) == 0 {
		return view.CurrentNodeID
	}
	return view.History[len(view.History)-1]
}

func prompt(w io.Writer, view session.View) {
	switch {
	case view.MinigameRunning:
		fmt.Fprint(w, "[w]in or [l]ose > ")
	case view.Status == domain.StatusAwaitingChoice:
		fmt.Fprintf(w, "choose 1-%d > ", len(view.Choices))
	case view.Status == domain.StatusAwaitingAdvance:
		fmt.Fprint(w, "> ")
	}
}

// readLines pumps input lines so a blocked read never holds up cancellation.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
