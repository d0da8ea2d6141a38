package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

var (
	// ErrNoSuchChoice is returned when picking a choice index that is not offered.
	ErrNoSuchChoice = errors.New("no such choice")
	// ErrNoMinigame is returned when completing a minigame that is not running.
	ErrNoMinigame = errors.New("no minigame running")
	// ErrMinigameRunning is returned when a second minigame is started.
	ErrMinigameRunning = errors.New("a minigame is already running")
)

// DefaultAnchors are the named character positions every stage knows.
var DefaultAnchors = map[string]domain.Vec2{
	"left":   {X: -0.5},
	"center": {},
	"right":  {X: 0.5},
}

type choice struct {
	label string
	then  ports.Continuation
}

type minigame struct {
	prefab     domain.AssetRef
	onComplete func(success bool)
}

// fighterRoster records the fighters a minigame was set up with.
type fighterRoster struct {
	fighters []domain.Fighter
}

func (r *fighterRoster) AddFighter(f domain.Fighter) {
	r.fighters = append(r.fighters, f)
}

// Stage is a recording host. It implements every collaborator port, keeps
// the requested actions in order and lets a driver pick choices and finish
// minigames. Safe for concurrent use.
type Stage struct {
	*State

	mu         sync.Mutex
	actions    []domain.ActionRequest
	choices    []choice
	anchors    map[string]domain.Vec2
	emotions   map[string]domain.AssetRef
	convention bool
	pending    *minigame
	autoResult *bool
	dispatcher ports.ActionDispatcher
	logger     *slog.Logger
}

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithDispatcher forwards every recorded action to d.
func WithDispatcher(d ports.ActionDispatcher) StageOption {
	return func(s *Stage) {
		s.dispatcher = d
	}
}

// WithSpriteConvention resolves emotions without a registered sprite to
// "<character>/<emotion>".
func WithSpriteConvention() StageOption {
	return func(s *Stage) {
		s.convention = true
	}
}

// WithAutoMinigame completes every minigame synchronously with the given result.
func WithAutoMinigame(success bool) StageOption {
	return func(s *Stage) {
		s.autoResult = &success
	}
}

// WithStageLogger sets the logger.
func WithStageLogger(logger *slog.Logger) StageOption {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithState shares a player state with the stage.
func WithState(state *State) StageOption {
	return func(s *Stage) {
		s.State = state
	}
}

// NewStage creates a stage with the default anchors and an empty player state.
func NewStage(opts ...StageOption) *Stage {
	s := &Stage{
		State:    NewState(),
		anchors:  make(map[string]domain.Vec2, len(DefaultAnchors)),
		emotions: make(map[string]domain.AssetRef),
		logger:   logging.NewNop(),
	}
	for name, pos := range DefaultAnchors {
		s.anchors[name] = pos
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAnchor registers a named character position.
func (s *Stage) SetAnchor(name string, pos domain.Vec2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[name] = pos
}

// RegisterEmotion registers the sprite of a character emotion.
func (s *Stage) RegisterEmotion(character domain.AssetRef, name string, sprite domain.AssetRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emotions[character.Path+"#"+name] = sprite
}

func (s *Stage) record(ctx context.Context, req domain.ActionRequest) error {
	s.mu.Lock()
	s.actions = append(s.actions, req)
	d := s.dispatcher
	s.mu.Unlock()

	if d != nil {
		return d.Dispatch(ctx, req)
	}
	return nil
}

// PlayText implements ports.DialogueSurface.
func (s *Stage) PlayText(ctx context.Context, line domain.Line) error {
	return s.record(ctx, domain.ActionRequest{Type: domain.ActionPlayText, Payload: line})
}

// ClearChoices implements ports.ChoiceRegistry.
func (s *Stage) ClearChoices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choices = nil
}

// AddChoice implements ports.ChoiceRegistry.
func (s *Stage) AddChoice(label string, then ports.Continuation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choices = append(s.choices, choice{label: label, then: then})
}

// ShowChoices implements ports.ChoiceRegistry.
func (s *Stage) ShowChoices(ctx context.Context) error {
	return s.record(ctx, domain.ActionRequest{Type: domain.ActionShowChoices, Payload: s.Choices()})
}

// Choices returns the labels currently offered.
func (s *Stage) Choices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	labels := make([]string, len(s.choices))
	for i, c := range s.choices {
		labels[i] = c.label
	}
	return labels
}

// Pick runs the continuation of the offered choice at index.
func (s *Stage) Pick(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.choices) {
		n := len(s.choices)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrNoSuchChoice, index, n)
	}
	then := s.choices[index].then
	s.mu.Unlock()

	then(ctx)
	return nil
}

// ShowScene implements ports.Environment.
func (s *Stage) ShowScene(ctx context.Context, scene domain.AssetRef, preset string) error {
	return s.record(ctx, domain.ActionRequest{
		Type:    domain.ActionShowScene,
		Payload: domain.ScenePayload{Scene: scene, Preset: preset},
	})
}

// ShowCharacter implements ports.Environment.
func (s *Stage) ShowCharacter(ctx context.Context, p domain.CharacterPlacement) error {
	return s.record(ctx, domain.ActionRequest{Type: domain.ActionShowCharacter, Payload: p})
}

// TryGetCharacterPosition implements ports.Environment.
func (s *Stage) TryGetCharacterPosition(name string) (domain.Vec2, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.anchors[name]
	return pos, ok
}

// Emotion implements ports.CharacterCatalog.
func (s *Stage) Emotion(character domain.AssetRef, name string) (domain.AssetRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sprite, ok := s.emotions[character.Path+"#"+name]; ok {
		return sprite, true
	}
	if s.convention && !character.IsZero() {
		return domain.Asset(character.Path + "/" + name), true
	}
	return domain.AssetRef{}, false
}

// SetMusicClip implements ports.AudioPlayer.
func (s *Stage) SetMusicClip(ctx context.Context, clip domain.AssetRef, volume float64) error {
	return s.playAudio(ctx, domain.AudioMusic, clip, volume)
}

// SetAmbienceClip implements ports.AudioPlayer.
func (s *Stage) SetAmbienceClip(ctx context.Context, clip domain.AssetRef, volume float64) error {
	return s.playAudio(ctx, domain.AudioAmbience, clip, volume)
}

// PlaySfx implements ports.AudioPlayer.
func (s *Stage) PlaySfx(ctx context.Context, clip domain.AssetRef, volume float64) error {
	return s.playAudio(ctx, domain.AudioSFX, clip, volume)
}

func (s *Stage) playAudio(ctx context.Context, channel domain.AudioKind, clip domain.AssetRef, volume float64) error {
	return s.record(ctx, domain.ActionRequest{
		Type:    domain.ActionPlayAudio,
		Payload: domain.AudioPayload{Channel: channel, Clip: clip, Volume: volume},
	})
}

// StartMinigame implements ports.MinigameLauncher. The minigame stays pending
// until CompleteMinigame is called, unless WithAutoMinigame was given.
func (s *Stage) StartMinigame(ctx context.Context, prefab domain.AssetRef, setup func(ports.MinigameInstance), onComplete func(success bool)) error {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return ErrMinigameRunning
	}
	auto := s.autoResult
	if auto == nil {
		s.pending = &minigame{prefab: prefab, onComplete: onComplete}
	}
	s.mu.Unlock()

	roster := &fighterRoster{}
	if setup != nil {
		setup(roster)
	}
	if err := s.record(ctx, domain.ActionRequest{
		Type:    domain.ActionStartMinigame,
		Payload: domain.MinigamePayload{Prefab: prefab, Fighters: roster.fighters},
	}); err != nil {
		return err
	}

	if auto != nil {
		s.logger.Debug("completing minigame", "prefab", prefab.Path, "success", *auto)
		onComplete(*auto)
	}
	return nil
}

// MinigameRunning reports whether a minigame waits for completion.
func (s *Stage) MinigameRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// CompleteMinigame finishes the pending minigame.
func (s *Stage) CompleteMinigame(success bool) error {
	s.mu.Lock()
	m := s.pending
	s.pending = nil
	s.mu.Unlock()

	if m == nil {
		return ErrNoMinigame
	}
	s.logger.Debug("completing minigame", "prefab", m.prefab.Path, "success", success)
	m.onComplete(success)
	return nil
}

// Actions returns every recorded action.
func (s *Stage) Actions() []domain.ActionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActionRequest(nil), s.actions...)
}

// Drain returns the actions recorded since the last call and forgets them.
func (s *Stage) Drain() []domain.ActionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.actions
	s.actions = nil
	return out
}

// Lines returns the text of every displayed line, in order.
func (s *Stage) Lines() []string {
	var out []string
	for _, a := range s.Actions() {
		if line, ok := a.Payload.(domain.Line); ok && a.Type == domain.ActionPlayText {
			out = append(out, line.Text)
		}
	}
	return out
}
