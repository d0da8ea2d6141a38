package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tavern() *domain.Graph {
	b := dsl.New()
	b.Start("start").Go("hello")
	b.Add("hello").Text("Welcome.").Speaker("Keeper").Go("ask")
	b.Add("ask").Choice("Stay").Option("Leave", "leave").Pick("Stay", "stay").Pick("Leave", "bye")
	b.Add("stay").Text("Pull up a chair.")
	b.Add("bye").Text("Safe travels.")
	return b.MustBuild()
}

func arena() *domain.Graph {
	b := dsl.New()
	b.Start("start").Go("fight")
	b.Add("fight").Minigame("prefabs/duel").OnSuccess("win").OnFail("lose")
	b.Add("win").Text("Victory.")
	b.Add("lose").Text("Defeat.")
	return b.MustBuild()
}

func newManager(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()
	store, err := memory.NewGraphStoreFrom(map[string]*domain.Graph{
		"tavern": tavern(),
		"arena":  arena(),
	})
	require.NoError(t, err)
	return session.NewManager(store, opts...)
}

func lines(actions []domain.ActionRequest) []string {
	var out []string
	for _, a := range actions {
		if line, ok := a.Payload.(domain.Line); ok {
			out = append(out, line.Text)
		}
	}
	return out
}

func TestManager_Playthrough(t *testing.T) {
	m := newManager(t, session.WithIDGenerator(func() string { return "s1" }))
	ctx := context.Background()

	view, err := m.Create(ctx, "tavern")
	require.NoError(t, err)
	assert.Equal(t, "s1", view.SessionID)
	assert.Equal(t, "tavern", view.Graph)
	assert.Equal(t, "hello", view.CurrentNodeID)
	// The line registers the choices linked from it as soon as it plays.
	assert.Equal(t, domain.StatusAwaitingChoice, view.Status)
	assert.Equal(t, []string{"Stay", "Leave"}, view.Choices)
	assert.Equal(t, []string{"Welcome."}, lines(view.Actions))
	require.NotEmpty(t, view.Actions)
	assert.Equal(t, domain.ActionShowChoices, view.Actions[len(view.Actions)-1].Type)

	// Advance is ignored while choices are pending.
	view, err = m.Advance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingChoice, view.Status)
	assert.Empty(t, view.Actions)

	_, err = m.Pick(ctx, "s1", 5)
	assert.ErrorIs(t, err, memory.ErrNoSuchChoice)

	view, err = m.Pick(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, "bye", view.CurrentNodeID)
	assert.Equal(t, []string{"Safe travels."}, lines(view.Actions))
	assert.Equal(t, []string{"hello", "bye"}, view.History)

	view, err = m.Advance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, view.Status)

	view, err = m.Restart(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", view.CurrentNodeID)
}

func TestManager_GetDoesNotConsumeActions(t *testing.T) {
	m := newManager(t, session.WithIDGenerator(func() string { return "s1" }))
	ctx := context.Background()
	_, err := m.Create(ctx, "tavern")
	require.NoError(t, err)

	view, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, view.Actions)
	assert.Equal(t, "hello", view.CurrentNodeID)
}

func TestManager_Minigame(t *testing.T) {
	m := newManager(t, session.WithIDGenerator(func() string { return "duel" }))
	ctx := context.Background()

	view, err := m.Create(ctx, "arena")
	require.NoError(t, err)
	assert.True(t, view.MinigameRunning)
	assert.Equal(t, domain.StatusIdle, view.Status)

	view, err = m.CompleteMinigame(ctx, "duel", true)
	require.NoError(t, err)
	assert.False(t, view.MinigameRunning)
	assert.Equal(t, "win", view.CurrentNodeID)

	_, err = m.CompleteMinigame(ctx, "duel", false)
	assert.ErrorIs(t, err, memory.ErrNoMinigame)
}

func TestManager_NotFound(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, err = m.Advance(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "nope"), domain.ErrSessionNotFound)
}

func TestManager_DeleteAndList(t *testing.T) {
	n := 0
	m := newManager(t, session.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := m.Create(ctx, "tavern")
		require.NoError(t, err)
	}

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)

	require.NoError(t, m.Delete(ctx, "s2"))
	ids, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, ids)

	_, err = m.Get(ctx, "s2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ConcurrentAdvance(t *testing.T) {
	m := newManager(t, session.WithIDGenerator(func() string { return "race" }))
	ctx := context.Background()
	_, err := m.Create(ctx, "tavern")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Advance(ctx, "race")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Every advance hits the choices registered on create.
	view, err := m.Get(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingChoice, view.Status)
	assert.Equal(t, []string{"hello"}, view.History)
}

func TestManager_Hooks(t *testing.T) {
	var mu sync.Mutex
	var moves []string
	m := newManager(t, session.WithLifecycleHooks(domain.LifecycleHooks{
		OnCurrentChange: func(_ context.Context, e *domain.CurrentEvent) {
			mu.Lock()
			defer mu.Unlock()
			moves = append(moves, e.From+">"+e.To)
		},
	}))
	view, err := m.Create(context.Background(), "tavern")
	require.NoError(t, err)
	_, err = m.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{">hello"}, moves)
}

// recordingLocker is a DistributedLocker that tracks held keys.
type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	fail error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error { return nil }, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &recordingLocker{}
	m := newManager(t, session.WithLocker(locker), session.WithIDGenerator(func() string { return "s1" }))
	ctx := context.Background()

	_, err := m.Create(ctx, "tavern")
	require.NoError(t, err)
	_, err = m.Advance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"session:s1", "session:s1"}, locker.keys)

	locker.fail = errors.New("redis down")
	_, err = m.Advance(ctx, "s1")
	assert.ErrorContains(t, err, "redis down")
}
