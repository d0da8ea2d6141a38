package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractGraph builds the small graph used by the store contract: a start
// node fanning out to a scene, a line and a choice with two options. It
// panics if the fixture cannot be assembled.
func ContractGraph() *domain.Graph {
	g := domain.NewGraph()
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("contract graph: %v", err))
		}
	}
	must(g.AddNode(domain.NewNode("start", domain.Vec2{}, &domain.StartData{})))
	must(g.AddNode(domain.NewNode("scene", domain.Vec2{X: 150}, &domain.SceneData{Scene: domain.Asset("scenes/inn"), Preset: "night"})))
	must(g.AddNode(domain.NewNode("hello", domain.Vec2{X: 150, Y: 100}, &domain.TextData{Speaker: "Keeper", Text: "Welcome."})))
	must(g.AddNode(domain.NewNode("ask", domain.Vec2{X: 300, Y: 100}, &domain.ChoiceData{Options: []domain.ChoiceOption{
		{Label: "Stay"}, {Label: "Leave", Port: "leave"},
	}})))
	must(g.AddNode(domain.NewNode("bye", domain.Vec2{X: 450, Y: 100}, &domain.TextData{Text: "Safe travels."})))
	must(g.AddLink(domain.Link{From: "start", PortName: domain.PortOutput, To: "scene"}))
	must(g.AddLink(domain.Link{From: "start", PortName: domain.PortOutput, To: "hello"}))
	must(g.AddLink(domain.Link{From: "hello", PortName: domain.PortOutput, To: "ask"}))
	must(g.AddLink(domain.Link{From: "ask", PortName: "leave", To: "bye"}))
	must(g.AddGroup(domain.Group{ID: "inn", Title: "Inn", Nodes: []string{"scene", "hello"}}))
	return g
}

// RunGraphStoreContract runs a suite of tests to verify that a GraphStore implementation
// adheres to the defined interface contract.
func RunGraphStoreContract(t *testing.T, store GraphStore) {
	ctx := context.Background()
	name := "contract-graph-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		g := ContractGraph()
		require.NoError(t, store.Save(ctx, name, g), "Save should not return error")

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		AssertSameGraph(t, g, loaded)
	})

	t.Run("Load returns an independent copy", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, ContractGraph()))

		first, err := store.Load(ctx, name)
		require.NoError(t, err)
		_, err = first.RemoveNode("bye")
		require.NoError(t, err)

		second, err := store.Load(ctx, name)
		require.NoError(t, err)
		_, ok := second.Node("bye")
		assert.True(t, ok, "mutating a loaded graph must not affect the store")
	})

	t.Run("Save overwrites", func(t *testing.T) {
		g := ContractGraph()
		_, err := g.RemoveNode("bye")
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, name, g))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.Len())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, ContractGraph()))
		require.NoError(t, store.Delete(ctx, name), "Delete should not return error")

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound, "Load after Delete should return ErrGraphNotFound")

		assert.NoError(t, store.Delete(ctx, name), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		name1 := name + "-1"
		name2 := name + "-2"
		require.NoError(t, store.Save(ctx, name1, ContractGraph()))
		require.NoError(t, store.Save(ctx, name2, ContractGraph()))
		defer func() {
			_ = store.Delete(ctx, name1)
			_ = store.Delete(ctx, name2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, name1)
		assert.Contains(t, names, name2)
	})
}

// AssertSameGraph compares two graphs through their portable encoding.
func AssertSameGraph(t *testing.T, want, got *domain.Graph) {
	t.Helper()
	wantJSON, err := codec.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := codec.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}
