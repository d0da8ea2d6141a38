package loam

// NodeMetadata is the frontmatter of one node document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type NodeMetadata struct {
	ID    string `json:"id" mapstructure:"id"`
	Type  string `json:"type" mapstructure:"type"`
	Order int    `json:"order" mapstructure:"order"`

	Position LoaderPosition `json:"position" mapstructure:"position"`

	// To is sugar for a single link leaving the first output port.
	To    string       `json:"to" mapstructure:"to"`
	Links []LoaderLink `json:"links" mapstructure:"links"`

	// Speaker is sugar for the text node property of the same name.
	Speaker string `json:"speaker" mapstructure:"speaker"`

	Properties map[string]any `json:"properties" mapstructure:"properties"`
	Groups     []string       `json:"groups" mapstructure:"groups"`
}

type LoaderPosition struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

// LoaderLink names its port either by name or by index.
// Neither means the first output port.
type LoaderLink struct {
	Port  string `json:"port" mapstructure:"port"`
	Index *int   `json:"index" mapstructure:"index"`
	To    string `json:"to" mapstructure:"to"`
}
