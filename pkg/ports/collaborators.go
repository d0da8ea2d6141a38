package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// DialogueSurface displays lines of text.
type DialogueSurface interface {
	PlayText(ctx context.Context, line domain.Line) error
}

// Continuation resumes the story when the player picks a choice.
type Continuation func(ctx context.Context)

// ChoiceRegistry collects the choices offered after a line.
type ChoiceRegistry interface {
	ClearChoices()
	AddChoice(label string, then Continuation)
	ShowChoices(ctx context.Context) error
}

// Environment switches scenes and places characters.
type Environment interface {
	ShowScene(ctx context.Context, scene domain.AssetRef, preset string) error
	ShowCharacter(ctx context.Context, p domain.CharacterPlacement) error
	// TryGetCharacterPosition resolves a named anchor of the current scene.
	TryGetCharacterPosition(name string) (domain.Vec2, bool)
}

// CharacterCatalog resolves emotion names to sprites.
type CharacterCatalog interface {
	Emotion(character domain.AssetRef, name string) (domain.AssetRef, bool)
}

// AudioPlayer plays clips on the three audio channels.
type AudioPlayer interface {
	SetMusicClip(ctx context.Context, clip domain.AssetRef, volume float64) error
	SetAmbienceClip(ctx context.Context, clip domain.AssetRef, volume float64) error
	PlaySfx(ctx context.Context, clip domain.AssetRef, volume float64) error
}

// MinigameInstance is the launched minigame, configured before it starts.
type MinigameInstance interface {
	AddFighter(f domain.Fighter)
}

// MinigameLauncher starts external minigames. onComplete may be called
// synchronously or later, exactly once.
type MinigameLauncher interface {
	StartMinigame(ctx context.Context, prefab domain.AssetRef, setup func(MinigameInstance), onComplete func(success bool)) error
}

// Inventory holds the player's items.
type Inventory interface {
	HasItem(item domain.AssetRef) bool
	AddItem(item domain.AssetRef)
	RemoveItem(item domain.AssetRef)
}

// Traits holds the player's traits.
type Traits interface {
	HasTrait(name string) bool
	AddTrait(name string)
}

// Flags holds boolean story flags. Unset flags read as false.
type Flags interface {
	GetFlag(name string) bool
	SetFlag(name string, value bool)
}

// IntFlags holds integer story flags. Unset flags read as zero.
type IntFlags interface {
	GetInt(name string) int
	SetInt(name string, value int)
}

// Relationships holds relationship values with characters.
type Relationships interface {
	ModifyRelationship(character domain.AssetRef, delta int)
}

// ActionDispatcher receives the action requests a recording host collects,
// e.g. to render them on a console.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, req domain.ActionRequest) error
}
