package scripting

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strconv"

	"github.com/dop251/goja"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/keymap"
	"github.com/joeycumines/lsj/internal/procexec"
)

// passthrough names may be probed on lsj without being functions, so that
// JSON.stringify and promise resolution do not throw.
var passthrough = map[string]bool{"toJSON": true, "then": true, "constructor": true}

// guard wraps target so that reading any unknown property throws.
func guard(vm *goja.Runtime, target *goja.Object) goja.Value {
	return vm.ToValue(vm.NewProxy(target, &goja.ProxyTrapConfig{
		Get: func(t *goja.Object, property string, _ goja.Value) goja.Value {
			if v := t.Get(property); v != nil {
				return v
			}
			if passthrough[property] {
				return goja.Undefined()
			}
			panic(vm.NewTypeError("unknown lsj function: %s", property))
		},
	}))
}

// loadAPI is the lsj object seen by configuration documents.
func (e *Engine) loadAPI(s *session) goja.Value {
	vm := s.vm
	obj := vm.NewObject()

	_ = obj.Set("config", func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		if goja.IsUndefined(arg) || goja.IsNull(arg) {
			return goja.Undefined()
		}
		o := arg.ToObject(vm)
		if acts := o.Get("actions"); acts != nil && !goja.IsUndefined(acts) && !goja.IsNull(acts) {
			e.bindActions(s, acts.ToObject(vm))
		}
		tree, _ := config.AsTree(config.Normalize(o.Export()))
		delete(tree, "actions")
		if err := s.store.Apply(tree); err != nil {
			e.log.Error("config: " + err.Error())
		}
		return goja.Undefined()
	})

	_ = obj.Set("mapAction", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(2))
		if !ok {
			panic(vm.NewTypeError("mapAction: handler must be a function"))
		}
		e.bindScript(s, sequences(call.Argument(0)), call.Argument(1).String(), fn)
		return goja.Undefined()
	})

	_ = obj.Set("mapkey", func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(1).String()
		desc := spec
		if d := call.Argument(2); !goja.IsUndefined(d) && !goja.IsNull(d) {
			desc = d.String()
		}
		for _, seq := range sequences(call.Argument(0)) {
			s.keys.Bind(seq, desc, action.InternalHandler(spec))
		}
		return goja.Undefined()
	})

	_ = obj.Set("setPreviewer", func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		if goja.IsUndefined(arg) || goja.IsNull(arg) {
			s.previewer = nil
			return goja.Undefined()
		}
		fn, ok := goja.AssertFunction(arg)
		if !ok {
			panic(vm.NewTypeError("setPreviewer: previewer must be a function"))
		}
		s.previewer = fn
		return goja.Undefined()
	})

	e.setCommon(vm, obj)
	return guard(vm, obj)
}

// bindActions registers entries of a config "actions" array:
// {keymap, description, fn}, where fn is a function or an action string.
func (e *Engine) bindActions(s *session, list *goja.Object) {
	vm := s.vm
	n := list.Get("length").ToInteger()
	for i := range n {
		item := list.Get(strconv.FormatInt(i, 10))
		if item == nil || goja.IsUndefined(item) || goja.IsNull(item) {
			continue
		}
		o := item.ToObject(vm)
		seqs := sequences(o.Get("keymap"))
		desc := ""
		if d := o.Get("description"); d != nil && !goja.IsUndefined(d) {
			desc = d.String()
		}
		fnv := o.Get("fn")
		if fnv == nil {
			fnv = o.Get("action")
		}
		if fn, ok := goja.AssertFunction(fnv); ok {
			e.bindScript(s, seqs, desc, fn)
			continue
		}
		if fnv == nil || goja.IsUndefined(fnv) || goja.IsNull(fnv) {
			e.log.Warn("config: action without fn", "keymap", keymap.Format(seqs))
			continue
		}
		spec := fnv.String()
		if desc == "" {
			desc = spec
		}
		for _, seq := range seqs {
			s.keys.Bind(seq, desc, action.InternalHandler(spec))
		}
	}
}

func (e *Engine) bindScript(s *session, seqs []string, desc string, fn goja.Callable) {
	if len(seqs) == 0 {
		return
	}
	id := len(s.handlers)
	label := keymap.Canonical(seqs[0])
	s.handlers = append(s.handlers, fn)
	s.labels = append(s.labels, label)
	for _, seq := range seqs {
		s.keys.Bind(seq, desc, action.ScriptHandler(id, label))
	}
}

// setCommon installs the helpers shared by every lsj handle.
func (e *Engine) setCommon(vm *goja.Runtime, obj *goja.Object) {
	_ = obj.Set("quote", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(procexec.Quote(call.Argument(0).String()))
	})
	_ = obj.Set("getenv", func(call goja.FunctionCall) goja.Value {
		if v, ok := os.LookupEnv(call.Argument(0).String()); ok {
			return vm.ToValue(v)
		}
		if def := call.Argument(1); !goja.IsUndefined(def) {
			return def
		}
		return goja.Null()
	})
	_ = obj.Set("getOS", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(runtime.GOOS)
	})
	_ = obj.Set("trace", func(call goja.FunctionCall) goja.Value {
		e.trace.LogAttrs(context.Background(), slog.LevelInfo, "script", slog.String("text", call.Argument(0).String()))
		return goja.Undefined()
	})
}

// sequences reads a key sequence argument: a string or an array of them.
func sequences(v goja.Value) []string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	switch x := v.Export().(type) {
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{v.String()}
}

// toJS builds a plain JavaScript value from a tree value, so scripts get
// ordinary mutable objects rather than wrapped Go maps.
func toJS(vm *goja.Runtime, v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case config.Tree:
		obj := vm.NewObject()
		for _, k := range x.Keys() {
			_ = obj.Set(k, toJS(vm, x[k]))
		}
		return obj
	case map[string]any:
		return toJS(vm, config.Tree(x))
	case []any:
		items := make([]any, len(x))
		for i := range x {
			items[i] = toJS(vm, x[i])
		}
		return vm.NewArray(items...)
	case []string:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return vm.NewArray(items...)
	}
	return vm.ToValue(v)
}

// exportTree reads a JavaScript object back into a tree. Non-objects yield
// nil.
func exportTree(v goja.Value) config.Tree {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	t, _ := config.AsTree(config.Normalize(v.Export()))
	return t
}
