package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

// TerminalConfig controls terminal rendering.
type TerminalConfig struct {
	Width int
	// Style is a glamour standard style name: "dark", "light", "notty", "auto".
	Style string
}

// DefaultTerminalConfig returns an 80-column auto-styled configuration.
func DefaultTerminalConfig() TerminalConfig {
	return TerminalConfig{Width: 80, Style: "auto"}
}

// TerminalRenderer renders markdown as styled terminal output.
type TerminalRenderer struct {
	tr *glamour.TermRenderer
}

// NewTerminalRenderer wraps glamour with the given configuration.
func NewTerminalRenderer(cfg TerminalConfig) (*TerminalRenderer, error) {
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(cfg.Width)}
	if cfg.Style == "" || cfg.Style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(cfg.Style))
	}

	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("create glamour renderer: %w", err)
	}
	return &TerminalRenderer{tr: tr}, nil
}

// Render renders markdown and appends a numbered source list when sources
// were cited.
func (r *TerminalRenderer) Render(markdown string, sources []domain.Source) (string, error) {
	if markdown == "" {
		return "", nil
	}
	out, err := r.tr.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out = strings.TrimRight(out, "\n")
	if len(sources) > 0 {
		var b strings.Builder
		b.WriteString(out)
		b.WriteString("\n\n  Sources:\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "  [%d] %s - %s\n", s.Index, s.Title, s.URL)
		}
		out = strings.TrimRight(b.String(), "\n")
	}
	return out, nil
}
