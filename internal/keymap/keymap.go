package keymap

import (
	"sort"
)

// Binding maps a key sequence to a handler.
type Binding[H any] struct {
	Sequence    string
	Tokens      []string
	Description string
	Handler     H
}

type node[H any] struct {
	children map[string]*node[H]
	binding  *Binding[H]
}

// Map is a trie of bindings. Registering a sequence that already exists
// replaces it; shorter bindings may coexist with longer ones that share
// their prefix.
type Map[H any] struct {
	root  node[H]
	count int
}

// NewMap returns an empty map.
func NewMap[H any]() *Map[H] { return &Map[H]{} }

// Bind registers handler under seq and returns the stored binding.
func (m *Map[H]) Bind(seq, description string, handler H) *Binding[H] {
	tokens := Parse(seq)
	if len(tokens) == 0 {
		return nil
	}
	n := &m.root
	for _, tok := range tokens {
		if n.children == nil {
			n.children = make(map[string]*node[H])
		}
		child := n.children[tok]
		if child == nil {
			child = &node[H]{}
			n.children[tok] = child
		}
		n = child
	}
	if n.binding == nil {
		m.count++
	}
	n.binding = &Binding[H]{
		Sequence:    Format(tokens),
		Tokens:      tokens,
		Description: description,
		Handler:     handler,
	}
	return n.binding
}

// Lookup returns the binding registered for exactly seq.
func (m *Map[H]) Lookup(seq string) (*Binding[H], bool) {
	n := m.find(Parse(seq))
	if n == nil || n.binding == nil {
		return nil, false
	}
	return n.binding, true
}

// Len reports the number of bindings.
func (m *Map[H]) Len() int { return m.count }

// Bindings returns every binding ordered by sequence.
func (m *Map[H]) Bindings() []*Binding[H] {
	var out []*Binding[H]
	var walk func(n *node[H])
	walk = func(n *node[H]) {
		if n.binding != nil {
			out = append(out, n.binding)
		}
		for _, tok := range sortedKeys(n.children) {
			walk(n.children[tok])
		}
	}
	walk(&m.root)
	return out
}

func (m *Map[H]) find(tokens []string) *node[H] {
	n := &m.root
	for _, tok := range tokens {
		n = n.children[tok]
		if n == nil {
			return nil
		}
	}
	return n
}

// Candidate is one next-token group of a pending prefix.
type Candidate struct {
	Token string
	// Description is set when the token completes a binding.
	Description string
	// Complete reports whether prefix+Token is itself a binding.
	Complete bool
	// Count is the number of bindings reachable through Token.
	Count int
}

// Candidates lists the continuations of prefix grouped by next token.
func (m *Map[H]) Candidates(prefix []string) []Candidate {
	n := m.find(prefix)
	if n == nil {
		return nil
	}
	out := make([]Candidate, 0, len(n.children))
	for _, tok := range sortedKeys(n.children) {
		child := n.children[tok]
		c := Candidate{Token: tok, Count: countBindings(child)}
		if child.binding != nil {
			c.Complete = true
			c.Description = child.binding.Description
		}
		out = append(out, c)
	}
	return out
}

func countBindings[H any](n *node[H]) int {
	total := 0
	if n.binding != nil {
		total++
	}
	for _, c := range n.children {
		total += countBindings(c)
	}
	return total
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
