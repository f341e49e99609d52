package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joeycumines/lsj/internal/keymap"
)

// teaKeyNames maps bubbletea key names onto key names keymap understands.
var teaKeyNames = map[string]string{
	"pgup":   "PageUp",
	"pgdown": "PageDown",
	" ":      "Space",
	"space":  "Space",
}

// KeyTokens converts a key event into sequence tokens. Pasted or
// multi-rune input becomes one token per rune.
func KeyTokens(msg tea.KeyMsg) []string {
	if msg.Type == tea.KeyRunes && !msg.Paste {
		var mods []string
		if msg.Alt {
			mods = append(mods, "M")
		}
		out := make([]string, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			out = append(out, keymap.Token(string(r), mods...))
		}
		return out
	}
	if msg.Type == tea.KeyRunes {
		out := make([]string, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			out = append(out, string(r))
		}
		return out
	}
	if msg.Type == tea.KeySpace && !msg.Alt {
		return []string{" "}
	}

	name := msg.String()
	var mods []string
	for {
		switch {
		case strings.HasPrefix(name, "ctrl+"):
			mods, name = append(mods, "C"), name[len("ctrl+"):]
			continue
		case strings.HasPrefix(name, "alt+"):
			mods, name = append(mods, "M"), name[len("alt+"):]
			continue
		case strings.HasPrefix(name, "shift+"):
			mods, name = append(mods, "S"), name[len("shift+"):]
			continue
		}
		break
	}
	if n, ok := teaKeyNames[name]; ok {
		name = n
	}
	if name == "" {
		return nil
	}
	return []string{keymap.Token(name, mods...)}
}
