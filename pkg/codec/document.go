package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is written into every document.
const SchemaVersion = 1

// Document is the portable representation of a graph.
type Document struct {
	Version int            `json:"version" yaml:"version"`
	Nodes   []NodeRecord   `json:"nodes" yaml:"nodes"`
	Links   []domain.Link  `json:"links" yaml:"links"`
	Groups  []domain.Group `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// NodeRecord is a node with its payload flattened into an ordered property bag.
type NodeRecord struct {
	ID         string          `json:"id" yaml:"id"`
	Type       domain.NodeKind `json:"type" yaml:"type"`
	Position   domain.Vec2     `json:"position" yaml:"position"`
	Properties []Property      `json:"properties" yaml:"properties"`
}

// EncodeNode flattens a node.
func EncodeNode(n *domain.Node) (NodeRecord, error) {
	props, err := EncodeProperties(n.Data)
	if err != nil {
		return NodeRecord{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	return NodeRecord{
		ID:         n.ID,
		Type:       n.Kind(),
		Position:   n.Position,
		Properties: props,
	}, nil
}

// DecodeNode rebuilds a node from its record. The result shares nothing with
// the record.
func DecodeNode(rec NodeRecord) (*domain.Node, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("node record missing id")
	}
	data, err := DecodeProperties(rec.Type, rec.Properties)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", rec.ID, err)
	}
	return domain.NewNode(rec.ID, rec.Position, data), nil
}

// Encode converts a graph into a document. Node, link and group order is
// preserved.
func Encode(g *domain.Graph) (*Document, error) {
	doc := &Document{
		Version: SchemaVersion,
		Links:   []domain.Link{},
		Groups:  g.Groups(),
	}
	for _, l := range g.Links() {
		if r, ok := g.Resolved(l); ok {
			l = r
		}
		doc.Links = append(doc.Links, l)
	}
	for _, n := range g.Nodes() {
		rec, err := EncodeNode(n)
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, rec)
	}
	return doc, nil
}

// Decode builds a graph from a document. Links resolve by port name; a
// missing or out-of-range port index is ignored when the name is known.
func Decode(doc *Document) (*domain.Graph, error) {
	if doc.Version > SchemaVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}
	g := domain.NewGraph()
	for _, rec := range doc.Nodes {
		n, err := DecodeNode(rec)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, l := range doc.Links {
		if err := g.AddLink(l); err != nil {
			return nil, fmt.Errorf("link %s: %w", l, err)
		}
	}
	for _, grp := range doc.Groups {
		if err := g.AddGroup(grp); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Format is a serialization format for documents.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported graph file extension: %q", filepath.Ext(path))
	}
}

// Marshal serializes a graph as indented JSON.
func Marshal(g *domain.Graph) ([]byte, error) {
	return MarshalFormat(g, FormatJSON)
}

// Unmarshal parses a JSON document into a graph.
func Unmarshal(data []byte) (*domain.Graph, error) {
	return UnmarshalFormat(data, FormatJSON)
}

// MarshalYAML serializes a graph as YAML.
func MarshalYAML(g *domain.Graph) ([]byte, error) {
	return MarshalFormat(g, FormatYAML)
}

// UnmarshalYAML parses a YAML document into a graph.
func UnmarshalYAML(data []byte) (*domain.Graph, error) {
	return UnmarshalFormat(data, FormatYAML)
}

// MarshalFormat serializes a graph in the given format.
func MarshalFormat(g *domain.Graph, f Format) ([]byte, error) {
	doc, err := Encode(g)
	if err != nil {
		return nil, err
	}
	return MarshalDocument(doc, f)
}

// MarshalDocument serializes a document in the given format.
func MarshalDocument(doc *Document, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// UnmarshalFormat parses a document in the given format into a graph.
func UnmarshalFormat(data []byte, f Format) (*domain.Graph, error) {
	doc, err := UnmarshalDocument(data, f)
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// UnmarshalDocument parses a document without building the graph.
func UnmarshalDocument(data []byte, f Format) (*Document, error) {
	var doc Document
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse json graph: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml graph: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
	return &doc, nil
}

// Clone returns a deep copy of a graph by round-tripping it through a document.
func Clone(g *domain.Graph) (*domain.Graph, error) {
	doc, err := Encode(g)
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}
