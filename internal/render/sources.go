package render

import (
	"regexp"
	"sort"
	"strings"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

var (
	inlineLinkRe = regexp.MustCompile(`\[([^\]\n]+)\]\((https?://[^\s)]+)(?:\s+"([^"]*)")?\)`)
	refDefRe     = regexp.MustCompile(`(?m)^[ \t]{0,3}\[([^\]\n]+)\]:[ \t]*<?(https?://[^\s>]+)>?(?:[ \t]+"([^"]*)")?[ \t]*$`)
)

type sourceMatch struct {
	pos   int
	title string
	url   string
}

// ExtractSources lists the web links cited in text, in order of first
// appearance and without duplicates. Images are skipped.
func ExtractSources(text string) []domain.Source {
	var matches []sourceMatch

	for _, m := range inlineLinkRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > 0 && text[m[0]-1] == '!' {
			continue
		}
		title := text[m[2]:m[3]]
		if m[6] >= 0 && text[m[6]:m[7]] != "" {
			title = text[m[6]:m[7]]
		}
		matches = append(matches, sourceMatch{pos: m[0], title: title, url: text[m[4]:m[5]]})
	}
	for _, m := range refDefRe.FindAllStringSubmatchIndex(text, -1) {
		title := text[m[2]:m[3]]
		if m[6] >= 0 && text[m[6]:m[7]] != "" {
			title = text[m[6]:m[7]]
		}
		matches = append(matches, sourceMatch{pos: m[0], title: title, url: text[m[4]:m[5]]})
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	seen := make(map[string]bool, len(matches))
	sources := make([]domain.Source, 0, len(matches))
	for _, m := range matches {
		if seen[m.url] {
			continue
		}
		seen[m.url] = true
		sources = append(sources, domain.Source{
			Index: len(sources) + 1,
			Title: strings.TrimSpace(m.title),
			URL:   m.url,
		})
	}
	return sources
}
