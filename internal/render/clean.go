// Package render turns assistant replies into displayable text: it unwraps
// double-encoded payloads, extracts cited sources and renders markdown for
// the web and the terminal.
package render

import (
	"encoding/json"
	"strings"
)

// CleanAssistant unwraps an assistant payload that may itself be JSON. An
// object with a non-empty "assistant" string yields that string, a JSON
// string yields its value, anything else is returned unchanged.
func CleanAssistant(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	switch trimmed[0] {
	case '{':
		var wrapped struct {
			Assistant *string `json:"assistant"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapped); err == nil && wrapped.Assistant != nil && *wrapped.Assistant != "" {
			return *wrapped.Assistant
		}
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return s
		}
	}
	return raw
}
