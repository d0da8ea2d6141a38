package runtime_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
)

func newInterpreter(t *testing.T, b *dsl.Builder, stage *memory.Stage, opts ...runtime.Option) *runtime.Interpreter {
	t.Helper()
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	interp, err := runtime.New(g, runtime.Discover(stage), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return interp
}

func lines(actions []domain.ActionRequest) []string {
	var out []string
	for _, a := range actions {
		if a.Type == domain.ActionPlayText {
			out = append(out, a.Payload.(domain.Line).Text)
		}
	}
	return out
}

func types(actions []domain.ActionRequest) []string {
	var out []string
	for _, a := range actions {
		out = append(out, a.Type)
	}
	return out
}

func expectLines(t *testing.T, got []domain.ActionRequest, want ...string) {
	t.Helper()
	if l := lines(got); !reflect.DeepEqual(l, want) && !(len(l) == 0 && len(want) == 0) {
		t.Errorf("Expected lines %v, got %v", want, l)
	}
}

func expectCurrent(t *testing.T, interp *runtime.Interpreter, id string, status domain.Status) {
	t.Helper()
	if interp.Current() != id {
		t.Errorf("Expected current %q, got %q", id, interp.Current())
	}
	if interp.Status() != status {
		t.Errorf("Expected status %s, got %s", status, interp.Status())
	}
}

func TestInterpreter_Linear(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("a")
	b.Add("a").Text("Hello").Go("b")
	b.Add("b").Text("World")

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)
	expectCurrent(t, interp, "", domain.StatusIdle)

	if err := interp.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	expectCurrent(t, interp, "a", domain.StatusAwaitingAdvance)
	expectLines(t, stage.Drain(), "Hello")

	if err := interp.Advance(ctx); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	expectCurrent(t, interp, "b", domain.StatusAwaitingAdvance)
	expectLines(t, stage.Drain(), "World")

	// Terminal branch.
	if err := interp.Advance(ctx); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	expectCurrent(t, interp, "", domain.StatusIdle)
	if got := interp.Snapshot().History; !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected history [a b], got %v", got)
	}

	// Idle ignores advance.
	if err := interp.Advance(ctx); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if len(stage.Drain()) != 0 {
		t.Errorf("Expected no actions while idle")
	}
}

func gatedGraph() *dsl.Builder {
	b := dsl.New()
	b.Start("start").Go("cur")
	b.Add("cur").Text("Now").Go("cond").Go("d")
	b.Add("cond").Condition().RequireFlag("F", true).Go("c")
	b.Add("c").Text("C")
	b.Add("d").Text("D")
	return b
}

func TestInterpreter_GatedBranch(t *testing.T) {
	tests := []struct {
		name string
		flag bool
		want string
	}{
		{"flag unset", false, "d"},
		{"flag set", true, "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			stage := memory.NewStage()
			stage.SetFlag("F", tt.flag)
			interp := newInterpreter(t, gatedGraph(), stage)

			if err := interp.Start(ctx); err != nil {
				t.Fatal(err)
			}
			stage.Drain()
			if err := interp.Advance(ctx); err != nil {
				t.Fatal(err)
			}
			expectCurrent(t, interp, tt.want, domain.StatusAwaitingAdvance)
			expectLines(t, stage.Drain(), map[string]string{"c": "C", "d": "D"}[tt.want])
		})
	}
}

func TestInterpreter_FanOut(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("cur")
	b.Add("cur").Text("Now").Go("mod").Go("sfx").Go("e")
	b.Add("mod").Modifier().SetFlag("G", true)
	b.Add("sfx").Audio(domain.AudioSFX, "audio/bell", 1)
	b.Add("e").Text("E")

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	stage.Drain()

	if err := interp.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	expectCurrent(t, interp, "e", domain.StatusAwaitingAdvance)
	if !stage.GetFlag("G") {
		t.Errorf("Expected modifier to set G")
	}
	got := types(stage.Drain())
	want := []string{domain.ActionPlayAudio, domain.ActionPlayText}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected actions %v, got %v", want, got)
	}
}

func TestInterpreter_AtMostOneText(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("t1").Go("t2").Go("open").Go("also")
	b.Add("t1").Text("one")
	b.Add("t2").Text("two")
	b.Add("open").Condition().Go("t3").Go("sfx")
	b.Add("also").Condition().Go("t4")
	b.Add("t3").Text("three")
	b.Add("t4").Text("four")
	b.Add("sfx").Audio(domain.AudioSFX, "audio/bell", 1)

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Condition-routed text wins over direct text; the other branch's line is dropped.
	expectCurrent(t, interp, "t3", domain.StatusAwaitingAdvance)
	actions := stage.Drain()
	expectLines(t, actions, "three")
	if n := len(types(actions)); n != 2 {
		t.Errorf("Expected text and audio, got %v", types(actions))
	}
}

func TestInterpreter_UnmetConditionDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("locked").Go("music").Go("open")
	b.Add("locked").Condition().RequireItem("items/key").Go("mod").Go("secret").Go("sfx")
	b.Add("mod").Modifier().SetFlag("leaked", true)
	b.Add("secret").Text("secret")
	b.Add("sfx").Audio(domain.AudioSFX, "audio/creak", 1)
	b.Add("music").Audio(domain.AudioMusic, "audio/theme", 0.5)
	b.Add("open").Text("The door is locked.")

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if stage.GetFlag("leaked") {
		t.Errorf("Modifier behind an unmet condition ran")
	}
	actions := stage.Drain()
	expectLines(t, actions, "The door is locked.")
	// Direct side effects always run.
	if got := types(actions); !reflect.DeepEqual(got, []string{domain.ActionPlayAudio, domain.ActionPlayText}) {
		t.Errorf("Unexpected actions %v", got)
	}
	expectCurrent(t, interp, "open", domain.StatusAwaitingAdvance)
}

func TestInterpreter_PassThroughChain(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("scene")
	b.Add("scene").Scene("scenes/inn", "night").Go("wait")
	b.Add("wait").Delay(0).Go("hello").Go("scene")
	b.Add("hello").Text("Hello")

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	expectCurrent(t, interp, "hello", domain.StatusAwaitingAdvance)
	// The scene <-> delay cycle runs each node once.
	got := types(stage.Drain())
	if !reflect.DeepEqual(got, []string{domain.ActionShowScene, domain.ActionPlayText}) {
		t.Errorf("Unexpected actions %v", got)
	}
}

// reentrantDialogue advances the interpreter from inside PlayText.
type reentrantDialogue struct {
	*memory.Stage
	interp *runtime.Interpreter
	calls  int
}

func (d *reentrantDialogue) PlayText(ctx context.Context, line domain.Line) error {
	d.calls++
	if err := d.interp.Advance(ctx); err != nil {
		return err
	}
	return d.Stage.PlayText(ctx, line)
}

func TestInterpreter_ReentrantAdvanceIgnored(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("a")
	b.Add("a").Text("A").Go("b")
	b.Add("b").Text("B").Go("c")
	b.Add("c").Text("C")

	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	stage := memory.NewStage()
	dialogue := &reentrantDialogue{Stage: stage}
	collab := runtime.Discover(stage)
	collab.Dialogue = dialogue
	interp, err := runtime.New(g, collab)
	if err != nil {
		t.Fatal(err)
	}
	dialogue.interp = interp

	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	expectCurrent(t, interp, "a", domain.StatusAwaitingAdvance)
	if err := interp.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	expectCurrent(t, interp, "b", domain.StatusAwaitingAdvance)
	expectLines(t, stage.Drain(), "A", "B")
	if dialogue.calls != 2 {
		t.Errorf("Expected 2 dialogue calls, got %d", dialogue.calls)
	}
}

func TestInterpreter_Choices(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("ask")
	b.Add("ask").Text("Where to?").Go("pick").Go("gate").Go("never")
	b.Add("pick").Choice("Left", "Right").Pick("Left", "left").Pick("Right", "right")
	b.Add("gate").Condition().RequireTrait("brave").Go("bold")
	b.Add("bold").Choice("Fight").Pick("Fight", "fight")
	b.Add("never").Text("unreachable while choices are pending")
	b.Add("left").Text("You go left.")
	b.Add("right").Text("You go right.")
	b.Add("fight").Text("You fight.")

	tests := []struct {
		name    string
		brave   bool
		choices []string
		pick    int
		want    string
	}{
		{"plain", false, []string{"Left", "Right"}, 1, "right"},
		{"nested in met condition", true, []string{"Left", "Right", "Fight"}, 2, "fight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := memory.NewStage()
			if tt.brave {
				stage.AddTrait("brave")
			}
			interp := newInterpreter(t, b, stage)
			if err := interp.Start(ctx); err != nil {
				t.Fatal(err)
			}
			expectCurrent(t, interp, "ask", domain.StatusAwaitingChoice)
			if got := stage.Choices(); !reflect.DeepEqual(got, tt.choices) {
				t.Fatalf("Expected choices %v, got %v", tt.choices, got)
			}
			if got := interp.Snapshot().Choices; !reflect.DeepEqual(got, tt.choices) {
				t.Errorf("Expected snapshot choices %v, got %v", tt.choices, got)
			}
			stage.Drain()

			// Advance is gated by the pending choices.
			if err := interp.Advance(ctx); err != nil {
				t.Fatal(err)
			}
			expectCurrent(t, interp, "ask", domain.StatusAwaitingChoice)
			if len(stage.Drain()) != 0 {
				t.Errorf("Expected no actions while choices are pending")
			}

			if err := stage.Pick(ctx, tt.pick); err != nil {
				t.Fatal(err)
			}
			expectCurrent(t, interp, tt.want, domain.StatusAwaitingAdvance)
			if len(stage.Choices()) != 0 {
				t.Errorf("Expected choices cleared after pick")
			}
		})
	}
}

func TestInterpreter_ChoiceBesideText(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("ask").Go("hi")
	b.Add("ask").Choice("Wave").Pick("Wave", "wave")
	b.Add("hi").Text("Hi.")
	b.Add("wave").Text("You wave.")

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	expectCurrent(t, interp, "hi", domain.StatusAwaitingChoice)
	if got := stage.Choices(); !reflect.DeepEqual(got, []string{"Wave"}) {
		t.Fatalf("Expected the choice to survive the text, got %v", got)
	}
	got := types(stage.Drain())
	if !reflect.DeepEqual(got, []string{domain.ActionPlayText, domain.ActionShowChoices}) {
		t.Errorf("Unexpected actions %v", got)
	}

	if err := stage.Pick(ctx, 0); err != nil {
		t.Fatal(err)
	}
	expectCurrent(t, interp, "wave", domain.StatusAwaitingAdvance)
}

func TestInterpreter_PickSelectsDirectText(t *testing.T) {
	b := dsl.New()
	b.Start("start").Go("ask")
	b.Add("ask").Text("Well?").Go("pick")
	b.Add("pick").Choice("Go").Pick("Go", "gate").Pick("Go", "plain")
	b.Add("gate").Condition().RequireTrait("brave").Go("bold").Go("cheer")
	b.Add("bold").Text("Bold.")
	b.Add("cheer").Audio(domain.AudioSFX, "audio/cheer", 1)
	b.Add("plain").Text("Plain.")

	tests := []struct {
		name  string
		brave bool
		want  []string
	}{
		{"met condition", true, []string{domain.ActionPlayAudio, domain.ActionPlayText}},
		{"unmet condition", false, []string{domain.ActionPlayText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			stage := memory.NewStage()
			if tt.brave {
				stage.AddTrait("brave")
			}
			interp := newInterpreter(t, b, stage)
			if err := interp.Start(ctx); err != nil {
				t.Fatal(err)
			}
			stage.Drain()

			if err := stage.Pick(ctx, 0); err != nil {
				t.Fatal(err)
			}
			// The gated line never competes with the option's own line.
			expectCurrent(t, interp, "plain", domain.StatusAwaitingAdvance)
			actions := stage.Drain()
			expectLines(t, actions, "Plain.")
			if got := types(actions); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected actions %v, got %v", tt.want, got)
			}
		})
	}
}

// capturingChoices keeps every continuation ever registered.
type capturingChoices struct {
	*memory.Stage
	registered []ports.Continuation
}

func (c *capturingChoices) AddChoice(label string, then ports.Continuation) {
	c.registered = append(c.registered, then)
	c.Stage.AddChoice(label, then)
}

func TestInterpreter_StaleChoiceIgnored(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("ask")
	b.Add("ask").Text("?").Go("pick")
	b.Add("pick").Choice("Go").Pick("Go", "next")
	b.Add("next").Text("next")

	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	stage := memory.NewStage()
	choices := &capturingChoices{Stage: stage}
	collab := runtime.Discover(stage)
	collab.Choices = choices
	interp, err := runtime.New(g, collab)
	if err != nil {
		t.Fatal(err)
	}

	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	// Restarting supersedes the first registration.
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if len(choices.registered) != 2 {
		t.Fatalf("Expected 2 registrations, got %d", len(choices.registered))
	}
	choices.registered[0](ctx)
	expectCurrent(t, interp, "ask", domain.StatusAwaitingChoice)

	choices.registered[1](ctx)
	expectCurrent(t, interp, "next", domain.StatusAwaitingAdvance)

	// The consumed choice cannot be picked twice.
	choices.registered[1](ctx)
	expectCurrent(t, interp, "next", domain.StatusAwaitingAdvance)
	if err := stage.Pick(ctx, 0); !errors.Is(err, memory.ErrNoSuchChoice) {
		t.Errorf("Expected ErrNoSuchChoice, got %v", err)
	}
}

func minigameGraph() *dsl.Builder {
	b := dsl.New()
	b.Start("start").Go("intro")
	b.Add("intro").Text("Fight!").Go("duel").Go("cheer")
	b.Add("duel").Minigame("games/duel").Arena("scenes/arena", "noon").
		Fighter(domain.Fighter{Name: "Ann", Health: 10}).
		OnSuccess("win").OnFail("lose")
	b.Add("cheer").Audio(domain.AudioSFX, "audio/cheer", 1)
	b.Add("win").Text("You won.")
	b.Add("lose").Text("You lost.")
	return b
}

func TestInterpreter_MinigameResumes(t *testing.T) {
	ctx := context.Background()
	stage := memory.NewStage()
	interp := newInterpreter(t, minigameGraph(), stage)

	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	stage.Drain()
	if err := interp.Advance(ctx); err != nil {
		t.Fatal(err)
	}

	// Siblings of the minigame still run; the current node is unchanged.
	got := types(stage.Drain())
	want := []string{domain.ActionShowScene, domain.ActionStartMinigame, domain.ActionPlayAudio}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	expectCurrent(t, interp, "intro", domain.StatusAwaitingAdvance)
	if !stage.MinigameRunning() {
		t.Fatal("Expected minigame to be pending")
	}

	if err := stage.CompleteMinigame(false); err != nil {
		t.Fatal(err)
	}
	expectCurrent(t, interp, "lose", domain.StatusAwaitingAdvance)
	expectLines(t, stage.Drain(), "You lost.")
}

func TestInterpreter_MinigameCompletedDuringPass(t *testing.T) {
	ctx := context.Background()
	stage := memory.NewStage(memory.WithAutoMinigame(true))

	var events []string
	hooks := domain.LifecycleHooks{
		OnMinigameComplete: func(ctx context.Context, e *domain.MinigameEvent) {
			events = append(events, "complete")
		},
		OnCurrentChange: func(ctx context.Context, e *domain.CurrentEvent) {
			events = append(events, "current:"+e.To)
		},
	}
	interp := newInterpreter(t, minigameGraph(), stage, runtime.WithLifecycleHooks(hooks))
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	stage.Drain()
	if err := interp.Advance(ctx); err != nil {
		t.Fatal(err)
	}

	// The resume is queued until the pass (including the sibling audio) finished.
	got := types(stage.Drain())
	want := []string{domain.ActionShowScene, domain.ActionStartMinigame, domain.ActionPlayAudio, domain.ActionPlayText}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	expectCurrent(t, interp, "win", domain.StatusAwaitingAdvance)
	wantEvents := []string{"current:intro", "complete", "current:win"}
	if !reflect.DeepEqual(events, wantEvents) {
		t.Errorf("Expected events %v, got %v", wantEvents, events)
	}
}

func TestInterpreter_IntFlags(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("earn")
	b.Add("earn").Modifier().SetInt("gold", 5).AddInt("gold", 7).Go("rich").Go("poor")
	b.Add("rich").Condition().RequireInt("gold", domain.CmpGreaterEqual, 10).Go("buy")
	b.Add("poor").Text("You cannot afford it.")
	b.Add("buy").Text("You buy the sword.")

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if got := stage.GetInt("gold"); got != 12 {
		t.Errorf("Expected gold 12, got %d", got)
	}
	expectCurrent(t, interp, "buy", domain.StatusAwaitingAdvance)
}

func TestInterpreter_CharacterPlacement(t *testing.T) {
	ctx := context.Background()
	ann := domain.Asset("chars/ann")
	b := dsl.New()
	b.Start("start").Go("cast")
	b.Add("cast").Characters().
		Show(domain.CharacterEntry{Character: ann, Emotion: "happy", Position: "right", Offset: domain.Vec2{X: 0.25, Y: 0.5}, SortLayer: 3}).
		Show(domain.CharacterEntry{Character: ann, Emotion: "furious", Position: "left"}).
		Show(domain.CharacterEntry{Character: ann, Emotion: "happy", Position: "backstage"})

	stage := memory.NewStage()
	stage.RegisterEmotion(ann, "happy", domain.Asset("sprites/ann_happy"))
	interp := newInterpreter(t, b, stage)
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}

	actions := stage.Drain()
	if len(actions) != 1 {
		t.Fatalf("Expected only the resolvable entry, got %v", types(actions))
	}
	p := actions[0].Payload.(domain.CharacterPlacement)
	want := domain.CharacterPlacement{
		Character: ann,
		Emotion:   domain.Asset("sprites/ann_happy"),
		Tint:      domain.White,
		Position:  domain.Vec2{X: 0.75, Y: 0.5},
		SortLayer: 3,
		Scale:     1,
	}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("Expected %+v, got %+v", want, p)
	}
	expectCurrent(t, interp, "", domain.StatusIdle)
}

func TestInterpreter_MissingCollaborator(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("music").Go("hello")
	b.Add("music").Audio(domain.AudioMusic, "audio/theme", 1)
	b.Add("hello").Text("Hello")
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	stage := memory.NewStage()
	collab := runtime.Discover(stage)
	collab.Audio = nil

	_, err = runtime.New(g, collab)
	var missing *runtime.MissingCollaboratorError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingCollaboratorError, got %v", err)
	}
	if missing.Collaborator != "audio" || missing.NodeID != "music" {
		t.Errorf("Unexpected error details: %+v", missing)
	}

	interp, err := runtime.New(g, collab, runtime.WithMissingCollaborators())
	if err != nil {
		t.Fatal(err)
	}
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	// Only the audio contribution is skipped.
	expectCurrent(t, interp, "hello", domain.StatusAwaitingAdvance)
	if got := types(stage.Drain()); !reflect.DeepEqual(got, []string{domain.ActionPlayText}) {
		t.Errorf("Unexpected actions %v", got)
	}
}

func TestInterpreter_Hooks(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("wait").Go("a")
	b.Add("wait").Delay(1500)
	b.Add("a").Text("A").Go("ask")
	b.Add("ask").Choice("Go").Pick("Go", "b")
	b.Add("b").Text("B")

	var executed []string
	var delays []string
	var picks []string
	hooks := domain.LifecycleHooks{
		OnNodeExecute: func(ctx context.Context, e *domain.NodeEvent) {
			executed = append(executed, e.NodeID)
		},
		OnDelay: func(ctx context.Context, e *domain.DelayEvent) {
			delays = append(delays, e.Duration.String())
		},
		OnChoicePicked: func(ctx context.Context, e *domain.ChoiceEvent) {
			picks = append(picks, e.Label+"@"+e.Port)
		},
	}

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage, runtime.WithLifecycleHooks(hooks), runtime.WithSessionID("s1"))
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := stage.Pick(ctx, 0); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(executed, []string{"wait", "a", "b"}) {
		t.Errorf("Unexpected executed nodes %v", executed)
	}
	if !reflect.DeepEqual(delays, []string{"1.5µs"}) {
		t.Errorf("Unexpected delays %v", delays)
	}
	if !reflect.DeepEqual(picks, []string{"Go@choice 1"}) {
		t.Errorf("Unexpected picks %v", picks)
	}
	if interp.Snapshot().SessionID != "s1" {
		t.Errorf("Expected session id in snapshot")
	}
}

func TestInterpreter_CanceledContext(t *testing.T) {
	b := dsl.New()
	b.Start("start").Go("a")
	b.Add("a").Text("A")

	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := interp.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestInterpreter_DelayFunc(t *testing.T) {
	ctx := context.Background()
	b := dsl.New()
	b.Start("start").Go("wait")
	b.Add("wait").Delay(2 * time.Second).Go("a")
	b.Add("a").Text("A")

	var waited []time.Duration
	wait := func(ctx context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}
	stage := memory.NewStage()
	interp := newInterpreter(t, b, stage, runtime.WithDelayFunc(wait))
	if err := interp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(waited, []time.Duration{2 * time.Second}) {
		t.Errorf("Unexpected waits %v", waited)
	}
	expectCurrent(t, interp, "a", domain.StatusAwaitingAdvance)
}

func TestSleep(t *testing.T) {
	if err := runtime.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runtime.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
