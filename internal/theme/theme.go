// Package theme holds the widget's visual configuration and merges remote
// styling overrides over the built-in defaults.
package theme

import (
	"fmt"
	"regexp"
	"sort"
)

// Recognized override keys.
const (
	KeyPrimaryColor     = "primary_color"
	KeyPrimaryDarkColor = "primary_dark_color"
	KeyInkColor         = "ink_color"
	KeyMutedColor       = "muted_color"
	KeyBorderColor      = "border_color"
	KeyTitle            = "title"
	KeyBotName          = "bot_name"
	KeyAvatarLetter     = "avatar_letter"
	KeyWelcomeMessage   = "welcome_message"
	KeyPlaceholder      = "placeholder"
)

var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Theme is the full set of recognized styling values.
type Theme struct {
	PrimaryColor     string `json:"primary_color"`
	PrimaryDarkColor string `json:"primary_dark_color"`
	InkColor         string `json:"ink_color"`
	MutedColor       string `json:"muted_color"`
	BorderColor      string `json:"border_color"`
	Title            string `json:"title"`
	BotName          string `json:"bot_name"`
	AvatarLetter     string `json:"avatar_letter"`
	WelcomeMessage   string `json:"welcome_message"`
	Placeholder      string `json:"placeholder"`
}

// Default returns the built-in theme. It is applied before any network
// styling is attempted.
func Default() Theme {
	return Theme{
		PrimaryColor:     "#246BFD",
		PrimaryDarkColor: "#0F56E0",
		InkColor:         "#111827",
		MutedColor:       "#8E8E93",
		BorderColor:      "#E5E8F0",
		Title:            "symplistic.contentIQ",
		BotName:          "ContentIQ",
		AvatarLetter:     "S",
		WelcomeMessage:   "Welcome to symplistic.ai! Ask me anything!",
		Placeholder:      "Ask me anything...",
	}
}

// Merge returns t with recognized overrides applied. Unknown keys are
// ignored; invalid values keep the current value. Each rejected key is
// reported in the returned warnings, sorted by key.
func (t Theme) Merge(overrides map[string]any) (Theme, []string) {
	out := t
	var warnings []string

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		target := out.field(key)
		if target == nil {
			continue
		}
		s, ok := overrides[key].(string)
		if !ok || s == "" {
			warnings = append(warnings, fmt.Sprintf("%s: expected a non-empty string", key))
			continue
		}
		if isColorKey(key) && !hexColorRe.MatchString(s) {
			warnings = append(warnings, fmt.Sprintf("%s: %q is not a hex color", key, s))
			continue
		}
		if key == KeyAvatarLetter && len([]rune(s)) > 2 {
			warnings = append(warnings, fmt.Sprintf("%s: %q is too long", key, s))
			continue
		}
		*target = s
	}
	return out, warnings
}

func (t *Theme) field(key string) *string {
	switch key {
	case KeyPrimaryColor:
		return &t.PrimaryColor
	case KeyPrimaryDarkColor:
		return &t.PrimaryDarkColor
	case KeyInkColor:
		return &t.InkColor
	case KeyMutedColor:
		return &t.MutedColor
	case KeyBorderColor:
		return &t.BorderColor
	case KeyTitle:
		return &t.Title
	case KeyBotName:
		return &t.BotName
	case KeyAvatarLetter:
		return &t.AvatarLetter
	case KeyWelcomeMessage:
		return &t.WelcomeMessage
	case KeyPlaceholder:
		return &t.Placeholder
	}
	return nil
}

func isColorKey(key string) bool {
	switch key {
	case KeyPrimaryColor, KeyPrimaryDarkColor, KeyInkColor, KeyMutedColor, KeyBorderColor:
		return true
	}
	return false
}
