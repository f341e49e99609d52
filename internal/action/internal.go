// Package action resolves bound handlers into effect sets and applies them
// to host state in a fixed order.
package action

import (
	"fmt"
	"slices"
	"strings"
)

// Internal is one built-in action, written "name" or "name:arg".
type Internal struct {
	Name string
	Arg  string
}

func (a Internal) String() string {
	if a.Arg == "" {
		return a.Name
	}
	return a.Name + ":" + a.Arg
}

// builtins lists every recognised action name with the arguments it
// accepts; nil accepts any argument, an empty slice none.
var builtins = map[string][]string{
	"quit":      {},
	"redraw":    {},
	"sort":      {"name", "size", "mtime", "created", "reverse:toggle"},
	"show":      {"none", "size", "created", "modified"},
	"display":   {"absolute", "friendly"},
	"hidden":    {"toggle"},
	"nav":       {"top", "bottom", "up", "down", "parent", "enter", "pageup", "pagedown"},
	"overlay":   {"messages", "output", "which_key", "close"},
	"select":    {"toggle", "clear", "all"},
	"clipboard": {"copy", "move", "paste", "clear"},
	"file":      {"add", "rename", "delete"},
	"theme":     {"picker"},
	"find":      {"open", "next", "prev"},
	"mark":      {"set", "goto", "list"},
	"messages":  {"clear"},
	"yank":      {"path"},
	"cmd":       nil,
}

// Parse parses a single action.
func Parse(s string) (Internal, error) {
	s = strings.TrimSpace(s)
	name, arg, _ := strings.Cut(s, ":")
	allowed, ok := builtins[name]
	if !ok {
		return Internal{}, fmt.Errorf("unknown action: %s", s)
	}
	if allowed != nil {
		if len(allowed) == 0 && arg != "" {
			return Internal{}, fmt.Errorf("action %s takes no argument", name)
		}
		if len(allowed) != 0 && !slices.Contains(allowed, arg) {
			return Internal{}, fmt.Errorf("unknown action: %s", s)
		}
	} else if name == "cmd" && arg == "" {
		arg = "open"
	}
	return Internal{Name: name, Arg: arg}, nil
}

// ParseChain parses actions separated by ';'. The "cmd" action consumes
// the rest of the string, so command lines may contain their own ';'.
func ParseChain(s string) ([]Internal, error) {
	var out []Internal
	for s != "" {
		part := s
		rest := ""
		if !strings.HasPrefix(strings.TrimSpace(s), "cmd:") {
			part, rest, _ = strings.Cut(s, ";")
		}
		s = rest
		if strings.TrimSpace(part) == "" {
			continue
		}
		a, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty action")
	}
	return out, nil
}
