// Package keymap turns key tokens into resolved bindings. A sequence such as
// "gg" or "<C-w>v" is a list of tokens: a plain character, or a bracketed
// key name with optional modifiers.
package keymap

import (
	"strings"
	"unicode/utf8"
)

// CancelToken discards a pending sequence.
const CancelToken = "<Esc>"

var namedKeys = map[string]string{
	"esc":       "Esc",
	"escape":    "Esc",
	"cr":        "CR",
	"enter":     "CR",
	"return":    "CR",
	"tab":       "Tab",
	"bs":        "BS",
	"backspace": "BS",
	"del":       "Del",
	"delete":    "Del",
	"ins":       "Ins",
	"insert":    "Ins",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"home":      "Home",
	"end":       "End",
	"pgup":      "PageUp",
	"pageup":    "PageUp",
	"pgdown":    "PageDown",
	"pagedown":  "PageDown",
	"lt":        "lt",
}

var modifierNames = map[string]string{
	"c":     "C",
	"ctrl":  "C",
	"m":     "M",
	"a":     "M",
	"alt":   "M",
	"meta":  "M",
	"s":     "S",
	"sh":    "S",
	"shift": "S",
}

// Parse splits a sequence string into canonical tokens. A "<" that does
// not open a well formed bracket is taken literally.
func Parse(seq string) []string {
	var tokens []string
	for len(seq) > 0 {
		if seq[0] == '<' {
			if end := strings.IndexByte(seq, '>'); end > 1 {
				if tok, ok := canonicalBracket(seq[1:end]); ok {
					tokens = append(tokens, tok)
					seq = seq[end+1:]
					continue
				}
			}
		}
		r, size := utf8.DecodeRuneInString(seq)
		tokens = append(tokens, string(r))
		seq = seq[size:]
	}
	return tokens
}

// Format joins tokens back into a sequence string.
func Format(tokens []string) string { return strings.Join(tokens, "") }

// Canonical normalises a sequence string.
func Canonical(seq string) string { return Format(Parse(seq)) }

// Token builds the token for a key. key is either a single character or a
// key name understood by Parse; mods are modifier names such as "C" or "M".
func Token(key string, mods ...string) string {
	if len(mods) == 0 {
		if utf8.RuneCountInString(key) == 1 {
			return key
		}
		if tok, ok := canonicalBracket(key); ok {
			return tok
		}
		return key
	}
	inner := strings.Join(mods, "-") + "-" + key
	if tok, ok := canonicalBracket(inner); ok {
		return tok
	}
	return "<" + inner + ">"
}

func canonicalBracket(inner string) (string, bool) {
	parts := strings.Split(inner, "-")
	// "<C-->" names the minus key
	if strings.HasSuffix(inner, "--") {
		parts = append(parts[:len(parts)-2], "-")
	}
	key := parts[len(parts)-1]
	if key == "" {
		return "", false
	}
	var mods []string
	for _, m := range parts[:len(parts)-1] {
		canon, ok := modifierNames[strings.ToLower(m)]
		if !ok {
			return "", false
		}
		mods = append(mods, canon)
	}
	if utf8.RuneCountInString(key) == 1 {
		if len(mods) == 0 {
			return "", false
		}
		if len(mods) == 1 && mods[0] == "C" {
			key = strings.ToLower(key)
		}
	} else {
		name := strings.ToLower(key)
		if name == "space" {
			if len(mods) == 0 {
				return " ", true
			}
			key = "Space"
		} else if canon, ok := namedKeys[name]; ok {
			key = canon
		} else if len(name) >= 2 && name[0] == 'f' && isDigits(name[1:]) {
			key = "F" + name[1:]
		} else {
			return "", false
		}
	}
	if len(mods) == 0 {
		return "<" + key + ">", true
	}
	return "<" + strings.Join(mods, "-") + "-" + key + ">", true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
