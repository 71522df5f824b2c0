package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// HTMLRenderer converts markdown to sanitized HTML for embedding in a page.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTMLRenderer creates a renderer with GitHub-flavoured markdown and a
// user-generated-content sanitizing policy.
func NewHTMLRenderer() *HTMLRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &HTMLRenderer{md: md, policy: policy}
}

// Render returns sanitized HTML for markdown.
func (r *HTMLRenderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}
