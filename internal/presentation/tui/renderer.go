package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// Renderer prints the actions of a playthrough to a console.
// Lines go through glamour as markdown; stage directions are dimmed.
type Renderer struct {
	out      io.Writer
	profile  termenv.Profile
	style    string
	plain    bool
	markdown *glamour.TermRenderer
}

// Option configures the Renderer.
type Option func(*Renderer)

// WithPlain prints lines verbatim, with no markdown rendering or color.
func WithPlain() Option {
	return func(r *Renderer) {
		r.plain = true
		r.profile = termenv.Ascii
	}
}

// WithStyle selects a glamour standard style ("dark", "light", "notty").
func WithStyle(name string) Option {
	return func(r *Renderer) {
		r.style = name
	}
}

// WithProfile overrides the detected color profile.
func WithProfile(p termenv.Profile) Option {
	return func(r *Renderer) {
		r.profile = p
	}
}

// NewRenderer creates a console renderer writing to out.
func NewRenderer(out io.Writer, opts ...Option) (*Renderer, error) {
	r := &Renderer{out: out, profile: termenv.ColorProfile()}
	for _, opt := range opts {
		opt(r)
	}
	if r.plain {
		return r, nil
	}

	style := glamour.WithAutoStyle() // Automatically detect light/dark background
	if r.style != "" {
		style = glamour.WithStandardStyle(r.style)
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	r.markdown = md
	return r, nil
}

// Render prints every action in order. Choices are numbered from 1.
func (r *Renderer) Render(actions []domain.ActionRequest) error {
	for _, a := range actions {
		if err := r.render(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) render(a domain.ActionRequest) error {
	switch p := a.Payload.(type) {
	case domain.Line:
		return r.line(p)
	case []string:
		for i, label := range p {
			fmt.Fprintf(r.out, "  %s %s\n", r.accent(fmt.Sprintf("%d)", i+1)), label)
		}
		return nil
	case domain.ScenePayload:
		detail := p.Scene.Path
		if p.Preset != "" {
			detail += " (" + p.Preset + ")"
		}
		r.direction("scene", detail)
	case domain.CharacterPlacement:
		detail := p.Character.Path
		if !p.Emotion.IsZero() {
			detail += " as " + p.Emotion.Path
		}
		r.direction("character", fmt.Sprintf("%s at %.0f,%.0f", detail, p.Position.X, p.Position.Y))
	case domain.AudioPayload:
		r.direction(string(p.Channel), fmt.Sprintf("%s at %.0f%%", p.Clip.Path, p.Volume*100))
	case domain.MinigamePayload:
		names := make([]string, len(p.Fighters))
		for i, f := range p.Fighters {
			names[i] = f.Name
		}
		detail := p.Prefab.Path
		if len(names) > 0 {
			detail += " with " + strings.Join(names, ", ")
		}
		r.direction("minigame", detail)
	default:
		r.direction(strings.ToLower(a.Type), fmt.Sprintf("%v", a.Payload))
	}
	return nil
}

func (r *Renderer) line(l domain.Line) error {
	if r.plain {
		if l.Speaker != "" {
			fmt.Fprintf(r.out, "%s: %s\n", l.Speaker, l.Text)
		} else {
			fmt.Fprintln(r.out, l.Text)
		}
		return nil
	}
	text := l.Text
	if l.Speaker != "" {
		text = fmt.Sprintf("**%s:** %s", l.Speaker, l.Text)
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return fmt.Errorf("render line: %w", err)
	}
	fmt.Fprint(r.out, out)
	return nil
}

func (r *Renderer) direction(kind, detail string) {
	s := r.profile.String(fmt.Sprintf("[%s] %s", kind, detail)).Faint()
	if r.profile != termenv.Ascii {
		s = s.Foreground(r.profile.Color("#a78bfa"))
	}
	fmt.Fprintln(r.out, s)
}

func (r *Renderer) accent(text string) termenv.Style {
	s := r.profile.String(text).Bold()
	if r.profile != termenv.Ascii {
		s = s.Foreground(r.profile.Color("#f472b6"))
	}
	return s
}

// Notice prints a system message.
func (r *Renderer) Notice(format string, args ...any) {
	fmt.Fprintf(r.out, ">>> %s\n", fmt.Sprintf(format, args...))
}
