package dsl

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	// 1. Build the graph using DSL
	b := New()

	b.Start("start").Go("hello")

	b.Add("hello").
		Text("Hello, DSL!").
		Speaker("Ann").
		At(100, 0).
		Go("ask")

	b.Add("ask").
		Choice("Stay").
		Option("Leave", "leave").
		Pick("Leave", "bye")

	b.Add("bye").Text("Goodbye!")
	b.Group("intro", "Intro", "hello", "ask")

	// 2. Compile
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 3. Verify specific nodes
	if g.Start() == nil || g.Start().ID != "start" {
		t.Fatalf("Expected start node")
	}
	hello, ok := g.Node("hello")
	if !ok {
		t.Fatal("hello node missing")
	}
	text := hello.Data.(*domain.TextData)
	if text.Speaker != "Ann" || text.Text != "Hello, DSL!" {
		t.Errorf("Unexpected text data: %+v", text)
	}
	if hello.Position.X != 100 {
		t.Errorf("Expected position x=100, got %v", hello.Position.X)
	}

	links := g.LinksFrom("ask")
	if len(links) != 1 {
		t.Fatalf("Expected 1 link from ask, got %d", len(links))
	}
	if links[0].PortName != "leave" || links[0].PortIndex != 1 || links[0].To != "bye" {
		t.Errorf("Unexpected choice link: %s", links[0])
	}

	if grp, ok := g.Group("intro"); !ok || len(grp.Nodes) != 2 {
		t.Errorf("Expected intro group with 2 nodes, got %+v", grp)
	}
}

func TestBuilder_AllKinds(t *testing.T) {
	b := New()
	b.Start("start").Go("scene").Go("cast").Go("gate").Go("wait")
	b.Add("scene").Scene("scenes/inn", "night")
	b.Add("cast").Characters().Show(domain.CharacterEntry{Character: domain.Asset("chars/ann"), Emotion: "happy", Position: "left"})
	b.Add("gate").Condition().RequireItem("items/key").RequireTrait("brave").RequireFlag("met", true).RequireInt("gold", domain.CmpGreater, 3).Go("mod")
	b.Add("mod").Modifier().Relate("chars/ann", 1).AddTrait("kind").AddItem("items/map").RemoveItem("items/key").SetFlag("met", false).SetInt("gold", 0).AddInt("gold", 2).Go("sfx")
	b.Add("sfx").Audio(domain.AudioSFX, "audio/door", 1)
	b.Add("wait").Delay(time.Second).Go("duel")
	b.Add("duel").Minigame("games/duel").Arena("scenes/arena", "noon").Fighter(domain.Fighter{Name: "Ann"}).OnSuccess("win").OnFail("lose")
	b.Add("win").Text("Won")
	b.Add("lose").Text("Lost")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if g.Len() != 10 {
		t.Errorf("Expected 10 nodes, got %d", g.Len())
	}
	mod, _ := g.Node("mod")
	if got := len(mod.Data.(*domain.ModifierData).IntFlags); got != 2 {
		t.Errorf("Expected 2 int flag changes, got %d", got)
	}
	if links := g.LinksFrom("duel"); len(links) != 2 || links[0].PortName != domain.PortSuccess {
		t.Errorf("Unexpected minigame links: %v", links)
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{
			name:  "setter on wrong kind",
			build: func(b *Builder) { b.Start("start"); b.Add("a").Text("x").RequireFlag("f", true) },
			want:  "RequireFlag used on a \"text\" node",
		},
		{
			name:  "unknown option",
			build: func(b *Builder) { b.Start("start"); b.Add("c").Choice("A").Pick("B", "start") },
			want:  "no option \"B\"",
		},
		{
			name:  "unknown port",
			build: func(b *Builder) { b.Start("start"); b.Add("a").Text("x").Via("elsewhere", "start") },
			want:  "no port \"elsewhere\"",
		},
		{
			name:  "link into start",
			build: func(b *Builder) { b.Start("start"); b.Add("a").Text("x").Go("start") },
			want:  "invalid link",
		},
		{
			name:  "missing kind",
			build: func(b *Builder) { b.Start("start"); b.Add("a") },
			want:  "has no kind",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			tt.build(b)
			_, err := b.Build()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Build() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}
