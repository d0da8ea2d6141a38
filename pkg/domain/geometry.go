package domain

// Vec2 is a 2D position or offset (authoring canvas or scene space).
type Vec2 struct {
	X float64 `json:"x" yaml:"x" prop:"x"`
	Y float64 `json:"y" yaml:"y" prop:"y"`
}

// Add returns the component-wise sum.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Color is an RGBA tint in the 0..1 range.
type Color struct {
	R float64 `json:"r" yaml:"r" prop:"r"`
	G float64 `json:"g" yaml:"g" prop:"g"`
	B float64 `json:"b" yaml:"b" prop:"b"`
	A float64 `json:"a" yaml:"a" prop:"a"`
}

// White is the neutral tint.
var White = Color{R: 1, G: 1, B: 1, A: 1}

// IsZero reports whether no tint was authored.
func (c Color) IsZero() bool {
	return c == Color{}
}
