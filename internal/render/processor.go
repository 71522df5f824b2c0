package render

import (
	"fmt"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

// Format names an output representation of a message.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatHTML     Format = "html"
	FormatTerminal Format = "terminal"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPlain, FormatHTML, FormatTerminal:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Processor renders message text into the requested format.
type Processor struct {
	html     *HTMLRenderer
	terminal *TerminalRenderer
}

// NewProcessor creates a processor with both renderers.
func NewProcessor(term TerminalConfig) (*Processor, error) {
	tr, err := NewTerminalRenderer(term)
	if err != nil {
		return nil, err
	}
	return &Processor{html: NewHTMLRenderer(), terminal: tr}, nil
}

// Render returns msg's text in format. Rendering failures fall back to the
// plain text so a reply is never lost.
func (p *Processor) Render(msg domain.Message, format Format) string {
	switch format {
	case FormatHTML:
		out, err := p.html.Render(msg.Text)
		if err != nil {
			return msg.Text
		}
		return out
	case FormatTerminal:
		if msg.Role == domain.RoleUser {
			return msg.Text
		}
		out, err := p.terminal.Render(msg.Text, msg.Sources)
		if err != nil {
			return msg.Text
		}
		return out
	default:
		return msg.Text
	}
}
