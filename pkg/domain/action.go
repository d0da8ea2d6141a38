package domain

// ActionRequest represents a side-effect the interpreter asked the host to
// perform. Recording hosts (tests, HTTP, console) keep them in order.
type ActionRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Standard Action Types
const (
	// ActionPlayText displays a line. Payload: Line
	ActionPlayText = "PLAY_TEXT"

	// ActionShowChoices displays the registered choices. Payload: []string (labels)
	ActionShowChoices = "SHOW_CHOICES"

	// ActionShowScene switches the scene preset. Payload: ScenePayload
	ActionShowScene = "SHOW_SCENE"

	// ActionShowCharacter places a character. Payload: CharacterPlacement
	ActionShowCharacter = "SHOW_CHARACTER"

	// ActionPlayAudio plays a clip on a channel. Payload: AudioPayload
	ActionPlayAudio = "PLAY_AUDIO"

	// ActionStartMinigame launches a minigame. Payload: MinigamePayload
	ActionStartMinigame = "START_MINIGAME"
)

// Line is a displayed line of dialogue.
type Line struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// ScenePayload describes a scene switch.
type ScenePayload struct {
	Scene  AssetRef `json:"scene"`
	Preset string   `json:"preset"`
}

// CharacterPlacement is a fully resolved character display request.
type CharacterPlacement struct {
	Character     AssetRef `json:"character"`
	Emotion       AssetRef `json:"emotion"`
	Tint          Color    `json:"tint"`
	Position      Vec2     `json:"position"`
	SortLayer     int      `json:"sort_layer"`
	Scale         float64  `json:"scale"`
	ParallaxLayer string   `json:"parallax_layer,omitempty"`
}

// AudioPayload describes an audio cue.
type AudioPayload struct {
	Channel AudioKind `json:"channel"`
	Clip    AssetRef  `json:"clip"`
	Volume  float64   `json:"volume"`
}

// MinigamePayload describes a minigame launch.
type MinigamePayload struct {
	Prefab   AssetRef  `json:"prefab"`
	Fighters []Fighter `json:"fighters"`
}
