package scripting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/preview"
)

// invocation is the state of one handler call, shared by the helpers bound
// for it.
type invocation struct {
	ctx  context.Context
	actx action.Context
	cfg  *goja.Object

	ops      []action.Internal
	messages []string
	errors   []string
}

// CallHandler calls the script handler id as fn(lsj, config), where config
// is a copy of snapshot with the context placed at config.context. The
// handler's mutations and its returned table are lowered into Effects.
func (e *Engine) CallHandler(ctx context.Context, id int, snapshot config.Tree, actx action.Context) (action.Effects, error) {
	s := e.cur
	if s == nil || id < 0 || id >= len(s.handlers) {
		return action.Effects{}, fmt.Errorf("%w: no handler %d", ErrScript, id)
	}
	label := s.labels[id]
	before := action.StripEffects(snapshot.Clone())
	before["context"] = actx.Tree()

	inv := &invocation{ctx: ctx, actx: actx}
	start := time.Now()
	var after config.Tree
	err := e.call(ctx, s, label, func(vm *goja.Runtime) error {
		inv.cfg = toJS(vm, before).(*goja.Object)
		ret, err := s.handlers[id](goja.Undefined(), e.helperAPI(vm, inv), inv.cfg)
		if err != nil {
			return err
		}
		after = exportTree(inv.cfg)
		if returned := exportTree(ret); returned != nil {
			after = config.Merge(after, returned)
		}
		return nil
	})

	attrs := []slog.Attr{
		slog.String("handler", label),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		e.trace.LogAttrs(ctx, slog.LevelInfo, "script call", append(attrs, slog.String("error", err.Error()))...)
		return action.Effects{}, err
	}

	eff := action.Lower(before, after)
	eff.Ops = append(eff.Ops, inv.ops...)
	eff.Messages = append(eff.Messages, inv.messages...)
	eff.Errors = append(eff.Errors, inv.errors...)
	e.trace.LogAttrs(ctx, slog.LevelInfo, "script call", append(attrs,
		slog.Int("ops", len(eff.Ops)),
		slog.Bool("config", len(eff.Config) != 0),
		slog.Bool("quit", eff.Quit))...)
	return eff, nil
}

// helperAPI is the lsj handle passed to handlers. Helpers record intent on
// the handler's config object, so it goes through the same lowering as a
// direct mutation; host operations are collected separately.
func (e *Engine) helperAPI(vm *goja.Runtime, inv *invocation) goja.Value {
	obj := vm.NewObject()
	set := func(key string, v any) { _ = inv.cfg.Set(key, v) }
	op := func(name, arg string) func(goja.FunctionCall) goja.Value {
		return func(goja.FunctionCall) goja.Value {
			inv.ops = append(inv.ops, action.Internal{Name: name, Arg: arg})
			return goja.Undefined()
		}
	}
	flag := func(key string, v any) func(goja.FunctionCall) goja.Value {
		return func(goja.FunctionCall) goja.Value {
			set(key, v)
			return goja.Undefined()
		}
	}

	_ = obj.Set("selectItem", func(call goja.FunctionCall) goja.Value {
		ctxObj := inv.cfg.Get("context")
		if ctxObj == nil || goja.IsUndefined(ctxObj) || goja.IsNull(ctxObj) {
			ctxObj = vm.NewObject()
			set("context", ctxObj)
		}
		_ = ctxObj.ToObject(vm).Set("selected_index", call.Argument(0).ToInteger())
		set("select_last", false)
		return goja.Undefined()
	})
	_ = obj.Set("selectLast", flag("select_last", true))
	_ = obj.Set("quit", flag("quit", true))
	_ = obj.Set("forceRedraw", flag("redraw", "full"))
	_ = obj.Set("openThemePicker", flag("theme_picker", "show"))
	_ = obj.Set("showMessages", flag("messages", "show"))
	_ = obj.Set("addEntry", flag("prompt", "add_entry"))
	_ = obj.Set("renameItem", flag("prompt", "rename_entry"))

	_ = obj.Set("displayOutput", func(call goja.FunctionCall) goja.Value {
		title := "Output"
		if t := call.Argument(1); !goja.IsUndefined(t) && !goja.IsNull(t) {
			title = t.String()
		}
		set("output_text", call.Argument(0).String())
		set("output_title", title)
		return goja.Undefined()
	})
	_ = obj.Set("showMessage", func(call goja.FunctionCall) goja.Value {
		inv.messages = append(inv.messages, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("showError", func(call goja.FunctionCall) goja.Value {
		inv.errors = append(inv.errors, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("setTheme", func(call goja.FunctionCall) goja.Value {
		inv.ops = append(inv.ops, action.Internal{Name: "cmd", Arg: "theme " + call.Argument(0).String()})
		return goja.Undefined()
	})
	_ = obj.Set("clearMessages", op("messages", "clear"))
	_ = obj.Set("copySelection", op("clipboard", "copy"))
	_ = obj.Set("moveSelection", op("clipboard", "move"))
	_ = obj.Set("pasteClipboard", op("clipboard", "paste"))
	_ = obj.Set("clearClipboard", op("clipboard", "clear"))
	_ = obj.Set("deleteSelected", op("file", "delete"))
	_ = obj.Set("yankPath", op("yank", "path"))

	_ = obj.Set("getSelectedPaths", func(goja.FunctionCall) goja.Value {
		paths := inv.actx.SelectedPaths
		if len(paths) == 0 && inv.actx.CurrentFile != "" {
			paths = []string{inv.actx.CurrentFile}
		}
		return toJS(vm, paths)
	})

	_ = obj.Set("osRun", func(call goja.FunctionCall) goja.Value {
		if e.runner == nil {
			panic(vm.NewTypeError("osRun: process execution unavailable"))
		}
		cmd := call.Argument(0).String()
		res := e.runner.Captured(inv.ctx, cmd, inv.actx.Vars(), inv.actx.Cwd)
		text := res.Output()
		if res.Err != nil && text == "" {
			text = "<error: " + res.Err.Error() + ">"
		}
		set("output_text", text)
		set("output_title", "$ "+cmd)
		e.recordFailure(inv, res.Failed(), res.Err != nil, res.Message(false))

		ret := vm.NewObject()
		_ = ret.Set("stdout", string(res.Stdout))
		_ = ret.Set("stderr", string(res.Stderr))
		_ = ret.Set("code", res.ExitCode)
		_ = ret.Set("output_text", text)
		_ = ret.Set("output_title", "$ "+cmd)
		if res.Err != nil {
			_ = ret.Set("error", res.Err.Error())
		} else {
			_ = ret.Set("error", goja.Null())
		}
		return ret
	})

	_ = obj.Set("osRunInteractive", func(call goja.FunctionCall) goja.Value {
		if e.runner == nil {
			panic(vm.NewTypeError("osRunInteractive: process execution unavailable"))
		}
		cmd := call.Argument(0).String()
		res := e.runner.Interactive(inv.ctx, cmd, inv.actx.Vars(), inv.actx.Cwd)
		set("redraw", "full")
		if res.Failed() {
			set("output_text", res.Message(true))
			set("output_title", "Output")
		}
		e.recordFailure(inv, res.Failed(), res.Err != nil, res.Message(true))
		return vm.ToValue(!res.Failed())
	})

	e.setCommon(vm, obj)
	return guard(vm, obj)
}

// recordFailure turns a failed run into a message: spawn failures are
// errors, non-zero exits plain messages.
func (e *Engine) recordFailure(inv *invocation, failed, spawn bool, msg string) {
	switch {
	case !failed:
	case spawn:
		inv.errors = append(inv.errors, msg)
	default:
		inv.messages = append(inv.messages, msg)
	}
}

// PreviewCommand calls the registered previewer as fn(ctx, lsj). A null or
// undefined result means the built-in display should be used.
func (e *Engine) PreviewCommand(ctx context.Context, req preview.Request) (cmd string, ok bool, err error) {
	s := e.cur
	if s == nil || s.previewer == nil {
		return "", false, nil
	}
	start := time.Now()
	err = e.call(ctx, s, "previewer", func(vm *goja.Runtime) error {
		arg := vm.NewObject()
		_ = arg.Set("path", req.Path)
		_ = arg.Set("directory", req.Directory)
		_ = arg.Set("name", req.Name)
		_ = arg.Set("extension", req.Extension)
		_ = arg.Set("is_binary", req.IsBinary)
		_ = arg.Set("width", req.Width)
		_ = arg.Set("height", req.Height)
		_ = arg.Set("preview_x", req.X)
		_ = arg.Set("preview_y", req.Y)

		handle := vm.NewObject()
		e.setCommon(vm, handle)
		v, err := s.previewer(goja.Undefined(), arg, guard(vm, handle))
		if err != nil {
			return err
		}
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil
		}
		cmd, ok = v.String(), true
		return nil
	})
	attrs := []slog.Attr{
		slog.String("path", req.Path),
		slog.String("cmd", cmd),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	e.trace.LogAttrs(ctx, slog.LevelInfo, "previewer", attrs...)
	if err != nil {
		return "", false, err
	}
	return cmd, ok, nil
}
