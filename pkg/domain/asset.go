package domain

// AssetRef identifies an external asset (scene, audio clip, character, sprite,
// inventory item, minigame prefab) by path. Only the identity round-trips
// through serialization, never the asset bytes.
type AssetRef struct {
	Path string `json:"path" yaml:"path"`
}

// Asset is a convenience constructor.
func Asset(path string) AssetRef {
	return AssetRef{Path: path}
}

// AssetPath returns the identity used by serializers.
func (a AssetRef) AssetPath() string {
	return a.Path
}

// IsZero reports whether the reference is unset.
func (a AssetRef) IsZero() bool {
	return a.Path == ""
}

func (a AssetRef) String() string {
	return a.Path
}
