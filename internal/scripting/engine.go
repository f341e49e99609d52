// Package scripting hosts the JavaScript configuration runtime. Scripts see a
// fixed capability surface (the lsj object) and never get filesystem or
// process access except through it.
package scripting

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/keymap"
	"github.com/joeycumines/lsj/internal/procexec"
	"github.com/joeycumines/lsj/internal/trace"
)

//go:embed defaults.js
var defaultsJS string

const defaultsName = "lsj/defaults.js"

var (
	// ErrScript wraps any failure raised while running script code.
	ErrScript = errors.New("script error")
	// ErrModuleOutsideRoot is returned by require for paths outside the
	// module directory.
	ErrModuleOutsideRoot = errors.New("module outside config root")
)

// ProcessRunner runs commands on behalf of script helpers.
type ProcessRunner interface {
	Captured(ctx context.Context, cmd string, vars procexec.Vars, dir string, env ...string) procexec.Result
	Interactive(ctx context.Context, cmd string, vars procexec.Vars, dir string) procexec.Result
}

// Options configure an Engine.
type Options struct {
	Location config.Location
	Runner   ProcessRunner
	// Messages receives console output and script diagnostics.
	Messages *MessageLog
	Trace    *slog.Logger
}

// Engine loads the configuration documents and calls the callbacks they
// register. It is not safe for concurrent use; the control loop owns it.
type Engine struct {
	loc      config.Location
	runner   ProcessRunner
	messages *MessageLog
	log      *slog.Logger
	trace    *slog.Logger

	cur *session
}

// session is one complete load: a runtime plus everything the documents
// registered. It is only adopted by the Engine once every document ran.
type session struct {
	vm        *goja.Runtime
	store     *config.Store
	keys      *keymap.Map[action.Handler]
	handlers  []goja.Callable
	labels    []string
	previewer goja.Callable
}

// Loaded is the state produced by a successful load.
type Loaded struct {
	Store *config.Store
	Keys  *keymap.Map[action.Handler]
}

// New returns an engine with nothing loaded.
func New(opts Options) *Engine {
	if opts.Messages == nil {
		opts.Messages = NewMessageLog(0)
	}
	if opts.Trace == nil {
		opts.Trace = trace.Discard()
	}
	return &Engine{
		loc:      opts.Location,
		runner:   opts.Runner,
		messages: opts.Messages,
		log:      opts.Messages.Logger(),
		trace:    opts.Trace,
	}
}

// Location returns the configuration root the engine loads from.
func (e *Engine) Location() config.Location { return e.loc }

// Load runs the embedded defaults and then the user document. A failing
// user document is discarded as a whole: the previously loaded state stays
// active, or the defaults alone when nothing was loaded yet. The error is
// returned for reporting either way.
func (e *Engine) Load(ctx context.Context) (Loaded, error) {
	start := time.Now()
	s, err := e.newSession(ctx, true)
	if err != nil {
		if e.cur == nil {
			fallback, ferr := e.newSession(ctx, false)
			if ferr != nil {
				return Loaded{}, errors.Join(err, ferr)
			}
			e.cur = fallback
		}
		e.trace.LogAttrs(ctx, slog.LevelInfo, "load",
			slog.String("entry", e.loc.Entry),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return e.Loaded(), err
	}
	e.cur = s
	e.trace.LogAttrs(ctx, slog.LevelInfo, "load",
		slog.String("entry", e.loc.Entry),
		slog.Int("bindings", s.keys.Len()),
		slog.Bool("previewer", s.previewer != nil),
		slog.Duration("elapsed", time.Since(start)))
	return e.Loaded(), nil
}

// Loaded returns the active state. Both fields are nil before Load.
func (e *Engine) Loaded() Loaded {
	if e.cur == nil {
		return Loaded{}
	}
	return Loaded{Store: e.cur.store, Keys: e.cur.keys}
}

// HasPreviewer reports whether a previewer is registered.
func (e *Engine) HasPreviewer() bool { return e.cur != nil && e.cur.previewer != nil }

func (e *Engine) newSession(ctx context.Context, user bool) (*session, error) {
	s := &session{
		vm:    goja.New(),
		store: config.NewStore(),
		keys:  keymap.NewMap[action.Handler](),
	}

	moduleDir := e.loc.ModulePath()
	registry := require.NewRegistry(
		require.WithLoader(moduleLoader{dir: moduleDir}.load),
		require.WithGlobalFolders(moduleDir),
	)
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(e.messages))
	registry.Enable(s.vm)
	console.Enable(s.vm)

	if err := s.vm.Set("lsj", e.loadAPI(s)); err != nil {
		return nil, fmt.Errorf("failed to install lsj: %w", err)
	}

	if err := e.call(ctx, s, defaultsName, func(vm *goja.Runtime) error {
		_, err := vm.RunScript(defaultsName, defaultsJS)
		return err
	}); err != nil {
		return nil, err
	}

	if !user || e.loc.Entry == "" {
		return s, nil
	}
	src, err := os.ReadFile(e.loc.Entry)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.loc.Entry, err)
	}
	name := filepath.ToSlash(e.loc.Entry)
	if err := e.call(ctx, s, name, func(vm *goja.Runtime) error {
		_, err := vm.RunScript(name, string(src))
		return err
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// call runs fn with the session runtime, interrupting it if ctx ends and
// converting exceptions and panics into ErrScript.
func (e *Engine) call(ctx context.Context, s *session, label string, fn func(vm *goja.Runtime) error) (err error) {
	stop := context.AfterFunc(ctx, func() { s.vm.Interrupt(ctx.Err()) })
	defer func() {
		stop()
		s.vm.ClearInterrupt()
		if r := recover(); r != nil {
			err = fmt.Errorf("%w in %s: panic: %v", ErrScript, label, r)
		}
	}()
	if err := fn(s.vm); err != nil {
		return scriptError(label, err)
	}
	return nil
}

func scriptError(label string, err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return fmt.Errorf("%w in %s: %s", ErrScript, label, ex.Error())
	}
	return fmt.Errorf("%w in %s: %w", ErrScript, label, err)
}
