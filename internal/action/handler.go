package action

import (
	"strconv"
)

// Kind tags a Handler.
type Kind uint8

const (
	// KindInvalid is an action string that did not parse; dispatching it
	// only reports a diagnostic.
	KindInvalid Kind = iota
	KindInternal
	KindScript
)

// Handler is what a binding or command resolves to. It is built once, at
// bind time.
type Handler struct {
	Kind Kind
	// Actions is the parsed chain for KindInternal.
	Actions []Internal
	// Script identifies a script callback for KindScript.
	Script int
	// Source is the text the handler was built from, for diagnostics.
	Source string
	Err    error
}

// InternalHandler parses an action chain such as "sort:size;nav:top".
func InternalHandler(spec string) Handler {
	actions, err := ParseChain(spec)
	if err != nil {
		return Handler{Kind: KindInvalid, Source: spec, Err: err}
	}
	return Handler{Kind: KindInternal, Actions: actions, Source: spec}
}

// ScriptHandler refers to the script callback with the given id.
func ScriptHandler(id int, source string) Handler {
	return Handler{Kind: KindScript, Script: id, Source: source}
}

func (h Handler) String() string {
	switch h.Kind {
	case KindInternal:
		return h.Source
	case KindScript:
		if h.Source != "" {
			return h.Source
		}
		return "script#" + strconv.Itoa(h.Script)
	}
	return "invalid(" + h.Source + ")"
}
