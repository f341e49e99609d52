package scripting

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gojarequire "github.com/dop251/goja_nodejs/require"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/preview"
	"github.com/joeycumines/lsj/internal/procexec"
	"github.com/joeycumines/lsj/internal/trace"
)

type fakeRunner struct {
	captured    []string
	interactive []string
	dirs        []string
	res         procexec.Result
}

func (f *fakeRunner) Captured(_ context.Context, cmd string, vars procexec.Vars, dir string, _ ...string) procexec.Result {
	f.captured = append(f.captured, vars.Expand(cmd))
	f.dirs = append(f.dirs, dir)
	r := f.res
	r.Command = vars.Expand(cmd)
	return r
}

func (f *fakeRunner) Interactive(_ context.Context, cmd string, vars procexec.Vars, dir string) procexec.Result {
	f.interactive = append(f.interactive, vars.Expand(cmd))
	f.dirs = append(f.dirs, dir)
	r := f.res
	r.Command = vars.Expand(cmd)
	return r
}

// newEngine writes files (relative to a fresh config root) and returns an
// engine for that root.
func newEngine(t *testing.T, files map[string]string) (*Engine, *MessageLog, *fakeRunner) {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	loc := config.Location{Root: root}
	if _, ok := files[config.EntryFile]; ok {
		loc.Entry = filepath.Join(root, config.EntryFile)
	}
	msgs := NewMessageLog(100)
	runner := &fakeRunner{}
	return New(Options{Location: loc, Runner: runner, Messages: msgs}), msgs, runner
}

func load(t *testing.T, e *Engine) Loaded {
	t.Helper()
	loaded, err := e.Load(context.Background())
	require.NoError(t, err)
	return loaded
}

func handlerFor(t *testing.T, loaded Loaded, seq string) action.Handler {
	t.Helper()
	b, ok := loaded.Keys.Lookup(seq)
	require.True(t, ok, "no binding for %q", seq)
	return b.Handler
}

func call(t *testing.T, e *Engine, loaded Loaded, seq string, actx action.Context) action.Effects {
	t.Helper()
	h := handlerFor(t, loaded, seq)
	require.Equal(t, action.KindScript, h.Kind)
	eff, err := e.CallHandler(context.Background(), h.Script, loaded.Store.Tree(), actx)
	require.NoError(t, err)
	return eff
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, nil)
	loaded := load(t, e)

	h := handlerFor(t, loaded, "gg")
	require.Equal(t, action.KindInternal, h.Kind)
	require.Equal(t, []action.Internal{{Name: "nav", Arg: "top"}}, h.Actions)
	require.Equal(t, action.KindInternal, handlerFor(t, loaded, " ").Kind)
	require.Equal(t, "name", loaded.Store.Config().UI.Sort)
	require.True(t, loaded.Store.Config().Keys.WhichKey)
	require.False(t, e.HasPreviewer())
}

func TestLoad_UserOverlayIsPartial(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.config({ ui: { sort: "size", panes: { preview: 60 } } });
lsj.config({ ui: { show_hidden: true }, mine: { counter: 1 } });
lsj.mapkey("gg", "nav:bottom", "Bottom instead");
`,
	})
	loaded := load(t, e)
	cfg := loaded.Store.Config()
	require.Equal(t, "size", cfg.UI.Sort)
	require.Equal(t, 60, cfg.UI.Panes.Preview)
	require.Equal(t, 10, cfg.UI.Panes.Parent)
	require.Equal(t, 20, cfg.UI.Panes.Current)
	require.True(t, cfg.UI.ShowHidden)
	v, ok := loaded.Store.Tree().Get("mine.counter")
	require.True(t, ok)
	require.Equal(t, int64(1), v)

	b, ok := loaded.Keys.Lookup("gg")
	require.True(t, ok)
	require.Equal(t, "Bottom instead", b.Description)
	require.Equal(t, []action.Internal{{Name: "nav", Arg: "bottom"}}, b.Handler.Actions)
}

func TestLoad_InvalidOverlayKeepsLastGood(t *testing.T) {
	t.Parallel()

	e, msgs, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.config({ ui: { sort: "mtime" } });
lsj.config({ ui: { sort: "colour", show_hidden: true } });
lsj.config({ ui: { show: "size" } });
`,
	})
	loaded := load(t, e)
	cfg := loaded.Store.Config()
	require.Equal(t, "mtime", cfg.UI.Sort)
	require.False(t, cfg.UI.ShowHidden)
	require.Equal(t, "size", cfg.UI.Show)
	require.Contains(t, strings.Join(msgs.Lines(), "\n"), "ui.sort must be one of: name|size|mtime|created")
}

func TestLoad_FailingDocumentIsDiscarded(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.config({ ui: { sort: "size" } });
lsj.mapkey("X", "quit");
throw new Error("boom");
`,
	})
	loaded, err := e.Load(context.Background())
	require.ErrorIs(t, err, ErrScript)
	require.Contains(t, err.Error(), "boom")
	require.NotNil(t, loaded.Store)
	require.Equal(t, "name", loaded.Store.Config().UI.Sort)
	_, ok := loaded.Keys.Lookup("X")
	require.False(t, ok)
	_, ok = loaded.Keys.Lookup("gg")
	require.True(t, ok)
}

func TestLoad_ReloadFailureKeepsPreviousState(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `lsj.mapkey("X", "quit"); lsj.config({ ui: { sort: "size" } });`,
	})
	load(t, e)

	require.NoError(t, os.WriteFile(e.Location().Entry, []byte(`lsj.config({ ui: { sort: "mtime" } }); oops(`), 0o644))
	loaded, err := e.Load(context.Background())
	require.ErrorIs(t, err, ErrScript)
	require.Equal(t, "size", loaded.Store.Config().UI.Sort)
	_, ok := loaded.Keys.Lookup("X")
	require.True(t, ok)
}

func TestLoad_UnknownFunction(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{"init.js": `lsj.nope("x");`})
	_, err := e.Load(context.Background())
	require.ErrorIs(t, err, ErrScript)
	require.Contains(t, err.Error(), "unknown lsj function: nope")

	e, _, _ = newEngine(t, map[string]string{"init.js": `JSON.stringify(lsj); lsj.getOS();`})
	_, err = e.Load(context.Background())
	require.NoError(t, err)
}

func TestLoad_ActionsTable(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.config({
  ui: { show: "size" },
  actions: [
    { keymap: ["gs", "<C-s>"], description: "Sort by size", fn: "sort:size;nav:top" },
    { keymap: "gq", description: "Quit from script", fn: (lsj) => lsj.quit() },
  ],
});
`,
	})
	loaded := load(t, e)
	require.Equal(t, "size", loaded.Store.Config().UI.Show)
	_, ok := loaded.Store.Tree()["actions"]
	require.False(t, ok)

	for _, seq := range []string{"gs", "<C-s>"} {
		h := handlerFor(t, loaded, seq)
		require.Equal(t, action.KindInternal, h.Kind)
		require.Len(t, h.Actions, 2)
	}
	eff := call(t, e, loaded, "gq", action.Context{})
	require.True(t, eff.Quit)
}

func TestRequire_RestrictedToModuleDir(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"lib/helpers.js":   `module.exports = { items: 42, nested: require("./sub/more") };`,
		"lib/sub/more.js":  `module.exports = "more";`,
		"lib/pkg/index.js": `module.exports = "pkg";`,
		"outside.js":       `module.exports = 1;`,
		"init.js":          `const h = require("helpers"); const p = require("./lib/pkg"); lsj.config({ ui: { max_list_items: h.items }, tag: h.nested + p });`,
	})
	loaded := load(t, e)
	require.Equal(t, 42, loaded.Store.Config().UI.MaxListItems)
	v, _ := loaded.Store.Tree().Get("tag")
	require.Equal(t, "morepkg", v)

	for _, src := range []string{
		`require("./outside");`,
		`require("../escape");`,
		`require("helpers/../../outside");`,
	} {
		e, _, _ := newEngine(t, map[string]string{"init.js": src, "outside.js": `module.exports = 1;`})
		_, err := e.Load(context.Background())
		require.Error(t, err, src)
		require.Contains(t, err.Error(), "module outside config root", src)
	}

	e, _, _ = newEngine(t, map[string]string{"init.js": `require("child_process");`})
	_, err := e.Load(context.Background())
	require.Error(t, err)
}

func TestModuleLoader(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	require.NoError(t, os.MkdirAll(filepath.Join(lib, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "a.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.js"), []byte("s"), 0o644))
	l := moduleLoader{dir: lib}

	data, err := l.load(filepath.ToSlash(filepath.Join(lib, "a.js")))
	require.NoError(t, err)
	require.Equal(t, "x", string(data))

	_, err = l.load(filepath.ToSlash(filepath.Join(lib, "missing.js")))
	require.True(t, errors.Is(err, gojarequire.ModuleFileDoesNotExistError))
	_, err = l.load(filepath.ToSlash(filepath.Join(lib, "dir")))
	require.True(t, errors.Is(err, gojarequire.ModuleFileDoesNotExistError))
	_, err = l.load(filepath.ToSlash(filepath.Join(root, "node_modules", "x.js")))
	require.True(t, errors.Is(err, gojarequire.ModuleFileDoesNotExistError))
	_, err = l.load(filepath.ToSlash(filepath.Join(root, "secret.js")))
	require.ErrorIs(t, err, ErrModuleOutsideRoot)

	if err := os.Symlink(filepath.Join(root, "secret.js"), filepath.Join(lib, "link.js")); err == nil {
		_, err = l.load(filepath.ToSlash(filepath.Join(lib, "link.js")))
		require.ErrorIs(t, err, ErrModuleOutsideRoot)
	}
}

func TestConsoleGoesToMessages(t *testing.T) {
	t.Parallel()

	e, msgs, _ := newEngine(t, map[string]string{
		"init.js": `console.log("hello"); console.warn("careful"); console.error("bad");`,
	})
	load(t, e)
	require.Equal(t, []string{"hello", "warning: careful", "error: bad"}, msgs.Lines())
}

func TestCallHandler_MutationsLowerToEffects(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.mapAction("gs", "Sort by size", (lsj, config) => {
  config.ui.sort = "size";
  lsj.selectItem(3);
  lsj.showMessage("sorted " + config.context.current_file_name);
});
`,
	})
	loaded := load(t, e)
	eff := call(t, e, loaded, "gs", action.Context{Cwd: "/tmp", CurrentFile: "/tmp/a.txt", Count: 10})
	v, ok := eff.Config.Get("ui.sort")
	require.True(t, ok)
	require.Equal(t, "size", v)
	require.NotNil(t, eff.Selection)
	require.Equal(t, 3, *eff.Selection)
	require.Equal(t, []string{"sorted a.txt"}, eff.Messages)
	_, ok = eff.Config["context"]
	require.False(t, ok)
}

func TestCallHandler_EffectFieldWinsOverMutation(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.mapAction("x", "conflict", (lsj, config) => {
  config.ui.sort = "size";
  return { sort: "mtime", quit: true };
});
`,
	})
	loaded := load(t, e)
	eff := call(t, e, loaded, "x", action.Context{})
	v, _ := eff.Config.Get("ui.sort")
	require.Equal(t, "mtime", v)
	require.True(t, eff.Quit)
}

func TestCallHandler_PersistedEffectFieldsDoNotRefire(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.config({ quit: true, output_text: "stale", messages: "show", sort: "size", mine: { n: 1 } });
lsj.mapAction("n", "noop", (lsj, config) => {
  if (config.quit !== undefined || config.output_text !== undefined) {
    lsj.showError("effect fields leaked into the snapshot");
  }
  config.mine.n = 2;
});
`,
	})
	loaded := load(t, e)
	for range 2 {
		eff := call(t, e, loaded, "n", action.Context{})
		require.False(t, eff.Quit)
		require.Nil(t, eff.Output)
		require.Empty(t, eff.Overlays)
		require.Empty(t, eff.Errors)
		require.Equal(t, config.Tree{"mine": config.Tree{"n": int64(2)}}, eff.Config)
	}
}

func TestCallHandler_HelpersRecordIntent(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.mapAction("a", "helpers", (lsj, config) => {
  lsj.copySelection();
  lsj.deleteSelected();
  lsj.clearMessages();
  lsj.setTheme("dark");
  lsj.openThemePicker();
  lsj.forceRedraw();
  lsj.showError("nope");
  lsj.selectLast();
  lsj.displayOutput("body", "Title");
});
lsj.mapAction("p", "prompt", (lsj) => { lsj.addEntry(); });
lsj.mapAction("s", "selection", (lsj) => ({ message_text: lsj.getSelectedPaths().join(",") }));
`,
	})
	loaded := load(t, e)
	eff := call(t, e, loaded, "a", action.Context{})
	require.Equal(t, []action.Internal{
		{Name: "clipboard", Arg: "copy"},
		{Name: "file", Arg: "delete"},
		{Name: "messages", Arg: "clear"},
		{Name: "cmd", Arg: "theme dark"},
	}, eff.Ops)
	require.Equal(t, []string{"nope"}, eff.Errors)
	require.True(t, eff.SelectLast)
	require.Equal(t, action.RedrawFull, eff.Redraw)
	require.Equal(t, &action.Output{Title: "Title", Text: "body"}, eff.Output)
	require.Contains(t, eff.Overlays, action.OverlayDirective{Overlay: action.OverlayThemePicker, Mode: action.Show})
	require.Contains(t, eff.Overlays, action.OverlayDirective{Overlay: action.OverlayOutput, Mode: action.Show})

	eff = call(t, e, loaded, "p", action.Context{})
	require.Equal(t, []action.OverlayDirective{{Overlay: action.OverlayPrompt, Mode: action.Show, Arg: "add_entry"}}, eff.Overlays)

	eff = call(t, e, loaded, "s", action.Context{CurrentFile: "/d/cur"})
	require.Equal(t, []string{"/d/cur"}, eff.Messages)
	eff = call(t, e, loaded, "s", action.Context{CurrentFile: "/d/cur", SelectedPaths: []string{"/d/a", "/d/b"}})
	require.Equal(t, []string{"/d/a,/d/b"}, eff.Messages)
}

func TestCallHandler_OsRun(t *testing.T) {
	t.Parallel()

	e, _, runner := newEngine(t, map[string]string{
		"init.js": `
lsj.mapAction("r", "run", (lsj) => {
  const res = lsj.osRun("wc -c {name}");
  lsj.showMessage("code=" + res.code + " stdout=" + res.stdout.trim());
});
`,
	})
	runner.res = procexec.Result{Stdout: []byte("12 a.txt\n"), Stderr: []byte("warn\n"), ExitCode: 3}
	loaded := load(t, e)
	eff := call(t, e, loaded, "r", action.Context{Cwd: "/work", CurrentFile: "/work/a.txt"})

	require.Equal(t, []string{"wc -c a.txt"}, runner.captured)
	require.Equal(t, []string{"/work"}, runner.dirs)
	require.Equal(t, &action.Output{Title: "$ wc -c {name}", Text: "12 a.txt\nwarn\n"}, eff.Output)
	require.Equal(t, []action.OverlayDirective{{Overlay: action.OverlayOutput, Mode: action.Show}}, eff.Overlays)
	require.Equal(t, []string{"<exit 3> $ wc -c a.txt", "code=3 stdout=12 a.txt"}, eff.Messages)
}

func TestCallHandler_OsRunInteractive(t *testing.T) {
	t.Parallel()

	e, _, runner := newEngine(t, map[string]string{
		"init.js": `lsj.mapAction("e", "edit", (lsj) => { if (!lsj.osRunInteractive("$EDITOR {path}")) lsj.showMessage("failed"); });`,
	})
	loaded := load(t, e)

	eff := call(t, e, loaded, "e", action.Context{CurrentFile: "/w/f"})
	require.Equal(t, []string{"$EDITOR /w/f"}, runner.interactive)
	require.Equal(t, action.RedrawFull, eff.Redraw)
	require.Nil(t, eff.Output)
	require.Empty(t, eff.Messages)

	runner.res = procexec.Result{ExitCode: 1}
	eff = call(t, e, loaded, "e", action.Context{CurrentFile: "/w/f"})
	require.Equal(t, action.RedrawFull, eff.Redraw)
	require.Equal(t, &action.Output{Title: "Output", Text: "<interactive exit 1> $ $EDITOR /w/f"}, eff.Output)
	require.Equal(t, []string{"<interactive exit 1> $ $EDITOR /w/f", "failed"}, eff.Messages)
}

func TestCallHandler_ErrorsAreContained(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.mapAction("t", "throws", (lsj, config) => { config.ui.sort = "size"; null.x; });
lsj.mapAction("u", "unknown helper", (lsj) => { lsj.launchMissiles(); });
lsj.mapAction("l", "loops", () => { for (;;) {} });
lsj.mapAction("ok", "noop", () => {});
`,
	})
	loaded := load(t, e)

	h := handlerFor(t, loaded, "t")
	eff, err := e.CallHandler(context.Background(), h.Script, loaded.Store.Tree(), action.Context{})
	require.ErrorIs(t, err, ErrScript)
	require.Contains(t, err.Error(), "TypeError")
	require.Contains(t, err.Error(), "in t")
	require.True(t, eff.Empty())

	h = handlerFor(t, loaded, "u")
	_, err = e.CallHandler(context.Background(), h.Script, loaded.Store.Tree(), action.Context{})
	require.ErrorContains(t, err, "unknown lsj function: launchMissiles")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	h = handlerFor(t, loaded, "l")
	_, err = e.CallHandler(ctx, h.Script, loaded.Store.Tree(), action.Context{})
	require.ErrorIs(t, err, ErrScript)

	// the runtime is usable after an interrupt
	eff = call(t, e, loaded, "ok", action.Context{})
	require.True(t, eff.Empty())
}

func TestPreviewCommand(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, map[string]string{
		"init.js": `
lsj.setPreviewer((ctx, lsj) => {
  if (ctx.is_binary) return null;
  if (ctx.extension === "md") return "glow -w " + ctx.width + " " + lsj.quote(ctx.path);
  if (ctx.name === "boom") throw new Error("previewer failed");
  return undefined;
});
`,
	})
	load(t, e)
	require.True(t, e.HasPreviewer())

	cmd, ok, err := e.PreviewCommand(context.Background(), preview.Request{Path: "/d/it's.md", Name: "it's.md", Extension: "md", Width: 40})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `glow -w 40 '/d/it'\''s.md'`, cmd)

	_, ok, err = e.PreviewCommand(context.Background(), preview.Request{Path: "/d/x.bin", IsBinary: true})
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = e.PreviewCommand(context.Background(), preview.Request{Path: "/d/x.txt", Extension: "txt"})
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = e.PreviewCommand(context.Background(), preview.Request{Path: "/d/boom", Name: "boom"})
	require.ErrorIs(t, err, ErrScript)
	require.Contains(t, err.Error(), "previewer failed")
}

func TestTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	root := t.TempDir()
	entry := filepath.Join(root, config.EntryFile)
	require.NoError(t, os.WriteFile(entry, []byte(`lsj.trace("loaded"); lsj.mapAction("k", "k", () => {});`), 0o644))
	e := New(Options{Location: config.Location{Root: root, Entry: entry}, Trace: trace.New(&buf)})
	loaded := load(t, e)
	call(t, e, loaded, "k", action.Context{})

	out := buf.String()
	require.Contains(t, out, "msg=script text=loaded")
	require.Contains(t, out, "msg=load ")
	require.Contains(t, out, `msg="script call" handler=k`)
}

func TestMessageLog(t *testing.T) {
	t.Parallel()

	l := NewMessageLog(2)
	l.Logger().With("handler", "gs").Error("failed")
	l.Logger().Debug("hidden")
	l.Logger().WithGroup("g").Info("grouped", "k", 1)
	l.Log("third")
	require.Equal(t, []string{"grouped g.k=1", "third"}, l.Lines())
	require.Equal(t, uint64(3), l.Seq())
	require.Len(t, l.Recent(1), 1)
	require.Equal(t, "third", l.Recent(1)[0].Message)
	l.Clear()
	require.Zero(t, l.Len())
	require.Equal(t, uint64(3), l.Seq())

	entry := LogEntry{Level: slog.LevelError, Message: "failed", Attrs: []slog.Attr{slog.String("handler", "gs")}}
	require.Equal(t, "error: failed handler=gs", entry.String())
}
