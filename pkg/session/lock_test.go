package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/dsl"
)

func TestManager_LockLifecycle(t *testing.T) {
	b := dsl.New()
	b.Start("start").Go("a")
	b.Add("a").Text("A.")

	store := memory.NewGraphStore()
	ctx := context.Background()
	if err := store.Save(ctx, "g", b.MustBuild()); err != nil {
		t.Fatal(err)
	}

	n := 0
	mgr := NewManager(store, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}))
	count := 1000

	for i := 0; i < count; i++ {
		view, err := mgr.Create(ctx, "g")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = mgr.Advance(ctx, view.SessionID)
		_ = mgr.Delete(ctx, view.SessionID)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
	if len(mgr.sessions) != 0 {
		t.Errorf("expected no live sessions, got %d", len(mgr.sessions))
	}
}
