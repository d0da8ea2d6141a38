package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// maxLabel bounds the text shown inside a node.
const maxLabel = 40

// GenerateMermaid produces a Mermaid flowchart of the graph.
// It applies semantic styling:
// - Start: ((Circle))
// - Choice: {Rhombus}
// - Condition: {{Hexagon}}
// - Modifier: [/Parallelogram/]
// - Minigame: [[Subroutine]]
// - Scene: >Flag]
// - Character: ([Stadium])
// - Audio and Delay: [(Cylinder)] and [\Trapezoid/]
// - Text: [Rectangle]
// Edges leaving a named port carry its label. Groups become subgraphs.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.ID)
		opener, closer := shape(node.Kind())
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label(node), closer)
	}

	for _, l := range g.Links() {
		from := sanitizeMermaidID(l.From)
		to := sanitizeMermaidID(l.To)
		if text := edgeLabel(g, l); text != "" {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, text, to)
			continue
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
	}

	for _, grp := range g.Groups() {
		title := grp.Title
		if title == "" {
			title = grp.ID
		}
		fmt.Fprintf(&sb, "    subgraph %s [\"%s\"]\n", sanitizeMermaidID("group_"+grp.ID), escape(title))
		for _, id := range grp.Nodes {
			fmt.Fprintf(&sb, "        %s\n", sanitizeMermaidID(id))
		}
		sb.WriteString("    end\n")
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			// History may name nodes deleted since.
			if _, ok := g.Node(id); !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if _, ok := g.Node(overlay.CurrentNode); ok {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(kind domain.NodeKind) (string, string) {
	switch kind {
	case domain.KindStart:
		return "((", "))"
	case domain.KindChoice:
		return "{", "}"
	case domain.KindCondition:
		return "{{", "}}"
	case domain.KindModifier:
		return "[/", "/]"
	case domain.KindMinigame:
		return "[[", "]]"
	case domain.KindScene:
		return ">", "]"
	case domain.KindCharacter:
		return "([", "])"
	case domain.KindAudio:
		return "[(", ")]"
	case domain.KindDelay:
		return "[\\", "/]"
	default:
		return "[", "]"
	}
}

func label(n *domain.Node) string {
	var detail string
	switch d := n.Data.(type) {
	case *domain.TextData:
		detail = d.Text
		if d.Speaker != "" {
			detail = d.Speaker + ": " + d.Text
		}
	case *domain.SceneData:
		detail = d.Scene.Path
	case *domain.AudioData:
		detail = string(d.Channel) + " " + d.Clip.Path
	case *domain.DelayData:
		detail = d.Duration.String()
	case *domain.MinigameData:
		detail = d.Prefab.Path
	}
	if detail == "" {
		return escape(n.ID)
	}
	return escape(n.ID) + " <br/> " + escape(truncate(detail))
}

// edgeLabel names the port a link leaves from. Single-output kinds get none.
func edgeLabel(g *domain.Graph, l domain.Link) string {
	src, ok := g.Node(l.From)
	if !ok {
		return ""
	}
	port, ok := g.ResolvePort(l)
	if !ok || port == domain.PortOutput {
		return ""
	}
	if d, ok := src.Data.(*domain.ChoiceData); ok {
		if i := src.PortIndex(port); i >= 0 && d.Options[i].Label != "" {
			return escape(truncate(d.Options[i].Label))
		}
	}
	return escape(port)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxLabel {
		return s
	}
	return string(r[:maxLabel-1]) + "…"
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
