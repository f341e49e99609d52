package config

import (
	"math"
	"reflect"
	"sort"
	"strings"
)

// Tree is the untyped form of a configuration document: nested maps whose
// leaves are strings, bools, numbers or lists. Scripts produce and consume
// trees; the typed Config is decoded from one.
type Tree map[string]any

// Merge returns a new tree holding base with overlay applied on top of it.
// Nested trees are merged recursively, every other overlay value replaces
// the base value outright. Neither argument is modified.
func Merge(base, overlay Tree) Tree {
	out := base.Clone()
	if out == nil {
		out = Tree{}
	}
	mergeInto(out, overlay)
	return out
}

func mergeInto(dst, src Tree) {
	for k, v := range src {
		if sv, ok := AsTree(v); ok {
			if dv, ok := AsTree(dst[k]); ok {
				mergeInto(dv, sv)
				dst[k] = dv
				continue
			}
		}
		dst[k] = cloneValue(v)
	}
}

// Diff returns the fields of after that are absent from, or differ from,
// before. Fields removed in after are not represented; a configuration
// overlay cannot delete a setting.
func Diff(before, after Tree) Tree {
	out := Tree{}
	for k, av := range after {
		bv, present := before[k]
		if !present {
			out[k] = cloneValue(av)
			continue
		}
		at, aok := AsTree(av)
		bt, bok := AsTree(bv)
		if aok && bok {
			if sub := Diff(bt, at); len(sub) != 0 {
				out[k] = sub
			}
			continue
		}
		if !reflect.DeepEqual(Normalize(av), Normalize(bv)) {
			out[k] = cloneValue(av)
		}
	}
	return out
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

// Get walks a dotted path such as "ui.sort".
func (t Tree) Get(path string) (any, bool) {
	var cur any = t
	for _, part := range strings.Split(path, ".") {
		m, ok := AsTree(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set assigns a value at a dotted path, creating intermediate trees.
func (t Tree) Set(path string, value any) {
	parts := strings.Split(path, ".")
	cur := t
	for _, part := range parts[:len(parts)-1] {
		next, ok := AsTree(cur[part])
		if !ok {
			next = Tree{}
		}
		cur[part] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = Normalize(value)
}

// Keys returns the sorted top-level keys.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AsTree reports whether v is a nested table, converting plain maps.
func AsTree(v any) (Tree, bool) {
	switch m := v.(type) {
	case Tree:
		return m, m != nil
	case map[string]any:
		return Tree(m), m != nil
	}
	return nil, false
}

// Normalize converts v into the canonical tree value space: maps become
// Tree, integral numbers become int64 and other numbers float64.
func Normalize(v any) any {
	switch x := v.(type) {
	case Tree:
		return x.Clone()
	case map[string]any:
		return Tree(x).Clone()
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = Normalize(x[i])
		}
		return out
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	}
	return v
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func cloneValue(v any) any {
	return Normalize(v)
}
