package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
)

func TestClipboard_CopyPasteRepeatable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "dst/", "src/a.txt")
	src, dst := filepath.Join(env.dir, "src"), filepath.Join(env.dir, "dst")

	require.NoError(t, env.s.setCwd(src, "a.txt"))
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "copy"})
	require.Equal(t, "Copied selection to clipboard", env.lastMessage())
	mode, items := env.s.Clipboard()
	require.Equal(t, "copy", mode)
	require.Equal(t, []string{filepath.Join(src, "a.txt")}, items)

	require.NoError(t, env.s.setCwd(dst, ""))
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "paste"})
	require.Equal(t, "Paste: ok=1 skipped=0 errors=0", env.lastMessage())
	require.FileExists(t, filepath.Join(src, "a.txt"))
	require.FileExists(t, filepath.Join(dst, "a.txt"))
	require.Equal(t, []string{"a.txt"}, env.names())
	require.Equal(t, action.RedrawFull, env.s.TakeRedraw())

	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "paste"})
	require.Equal(t, "Paste: ok=0 skipped=1 errors=0", env.lastMessage())
	require.Contains(t, env.messages(), "Skip (exists): "+filepath.Join(dst, "a.txt"))

	mode, _ = env.s.Clipboard()
	require.Equal(t, "copy", mode, "copy mode keeps the set")
}

func TestClipboard_MoveFollowsItems(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "one/", "two/", "f.txt")
	one, two := filepath.Join(env.dir, "one"), filepath.Join(env.dir, "two")

	env.s.SetSelection(2)
	require.Equal(t, "f.txt", env.current(t))
	env.s.RunOp(action.Internal{Name: "select", Arg: "toggle"})
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "move"})
	require.Equal(t, "Move selection armed", env.lastMessage())

	require.NoError(t, env.s.setCwd(one, ""))
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "paste"})
	require.Equal(t, "Paste: ok=1 skipped=0 errors=0", env.lastMessage())
	require.NoFileExists(t, filepath.Join(env.dir, "f.txt"))
	require.FileExists(t, filepath.Join(one, "f.txt"))
	require.Empty(t, env.s.Selected(), "moved sources leave the selection")

	mode, items := env.s.Clipboard()
	require.Equal(t, "move", mode)
	require.Equal(t, []string{filepath.Join(one, "f.txt")}, items)

	require.NoError(t, env.s.setCwd(two, ""))
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "paste"})
	require.FileExists(t, filepath.Join(two, "f.txt"))
	require.NoFileExists(t, filepath.Join(one, "f.txt"))

	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "clear"})
	require.Equal(t, "Clipboard cleared", env.lastMessage())
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "paste"})
	require.Equal(t, "Paste: clipboard empty", env.lastMessage())
}

func TestClipboard_MoveIntoItself(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "d/inner/")
	d := filepath.Join(env.dir, "d")
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "move"})
	require.NoError(t, env.s.setCwd(filepath.Join(d, "inner"), ""))
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "paste"})
	require.Equal(t, "Paste: ok=0 skipped=1 errors=0", env.lastMessage())
	require.Contains(t, env.messages(), "Skip (move into subdir): "+d)
	require.DirExists(t, d)
}

func TestClipboard_Empty(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "copy"})
	require.Equal(t, "Copy: no items selected", env.lastMessage())
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "move"})
	require.Equal(t, "Move: no items selected", env.lastMessage())
	mode, _ := env.s.Clipboard()
	require.Empty(t, mode)
}

func TestDelete_Confirm(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "a.txt", "b.txt")

	env.s.SetOverlay(action.OverlayConfirm, confirmDelete)
	require.Equal(t, action.OverlayConfirm, env.s.Overlay())
	q, ok := env.s.Question()
	require.True(t, ok)
	require.Equal(t, "Delete 'a.txt'? (y/n)", q)

	env.s.Confirm(false)
	require.Equal(t, action.OverlayNone, env.s.Overlay())
	require.FileExists(t, filepath.Join(env.dir, "a.txt"))

	env.s.RunOp(action.Internal{Name: "select", Arg: "all"})
	env.s.RunOp(action.Internal{Name: "file", Arg: "delete"})
	q, _ = env.s.Question()
	require.Equal(t, "Delete 2 items? (y/n)", q)
	env.s.Confirm(true)
	require.Equal(t, "Delete: ok=2 skipped=0 errors=0", env.lastMessage())
	require.Empty(t, env.names())
	require.Empty(t, env.s.Selected())
}

func TestDelete_WithoutConfirmation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "a.txt")
	require.NoError(t, env.s.ApplyConfig(config.Tree{"ui": config.Tree{"confirm_delete": false}}))
	env.s.RunOp(action.Internal{Name: "file", Arg: "delete"})
	require.Equal(t, action.OverlayNone, env.s.Overlay())
	require.NoFileExists(t, filepath.Join(env.dir, "a.txt"))
}

func TestDelete_NothingSelected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.s.RunOp(action.Internal{Name: "file", Arg: "delete"})
	require.Equal(t, action.OverlayNone, env.s.Overlay())
	require.Equal(t, "Delete: no items selected", env.lastMessage())
}

func TestAddEntry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "m.txt")

	env.s.RunOp(action.Internal{Name: "file", Arg: "add"})
	p, ok := env.s.Prompt()
	require.True(t, ok)
	require.Equal(t, promptAdd, p.Kind)
	env.s.SubmitPrompt("newdir/")
	require.DirExists(t, filepath.Join(env.dir, "newdir"))
	require.Equal(t, "newdir", env.current(t))
	require.Equal(t, action.OverlayNone, env.s.Overlay())

	env.s.SetOverlay(action.OverlayPrompt, promptAdd)
	env.s.SubmitPrompt("z.txt")
	require.FileExists(t, filepath.Join(env.dir, "z.txt"))
	require.Equal(t, "z.txt", env.current(t))
	require.Equal(t, "Created: "+filepath.Join(env.dir, "z.txt"), env.lastMessage())

	env.s.SetOverlay(action.OverlayPrompt, promptAdd)
	env.s.SubmitPrompt("z.txt")
	require.Contains(t, env.lastMessage(), "Add:")
}

func TestRenameEntry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "old.txt", "other.txt")
	env.s.RunOp(action.Internal{Name: "select", Arg: "toggle"})
	env.s.RunOp(action.Internal{Name: "clipboard", Arg: "copy"})

	env.s.RunOp(action.Internal{Name: "file", Arg: "rename"})
	p, ok := env.s.Prompt()
	require.True(t, ok)
	require.Equal(t, "old.txt", p.Value)
	env.s.SubmitPrompt("new.txt")

	require.FileExists(t, filepath.Join(env.dir, "new.txt"))
	require.NoFileExists(t, filepath.Join(env.dir, "old.txt"))
	require.Equal(t, "new.txt", env.current(t))
	require.Equal(t, []string{filepath.Join(env.dir, "new.txt")}, env.s.Selected())
	_, items := env.s.Clipboard()
	require.Equal(t, []string{filepath.Join(env.dir, "new.txt")}, items)

	env.s.SetOverlay(action.OverlayPrompt, promptRename)
	env.s.SubmitPrompt("other.txt")
	require.Contains(t, env.lastMessage(), "Rename:")
	require.FileExists(t, filepath.Join(env.dir, "new.txt"))
}

func TestRename_NoSelection(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.s.RunOp(action.Internal{Name: "file", Arg: "rename"})
	require.Equal(t, action.OverlayNone, env.s.Overlay())
	require.Equal(t, "Rename: no selection", env.lastMessage())
}

func TestFind(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "alpha", "beta", "Alphabet", "gamma")
	// collation puts Alphabet after alpha
	require.Equal(t, []string{"alpha", "Alphabet", "beta", "gamma"}, env.names())

	env.s.SetOverlay(action.OverlayPrompt, promptFind)
	env.s.SubmitPrompt("ALPHA")
	require.Equal(t, 0, env.s.Cursor(), "a match at the cursor counts")

	env.s.RunOp(action.Internal{Name: "find", Arg: "next"})
	require.Equal(t, 1, env.s.Cursor())
	env.s.RunOp(action.Internal{Name: "find", Arg: "next"})
	require.Equal(t, 0, env.s.Cursor(), "wraps around")
	env.s.RunOp(action.Internal{Name: "find", Arg: "prev"})
	require.Equal(t, 1, env.s.Cursor())

	env.s.search("zzz")
	require.Equal(t, "Find: no match for 'zzz'", env.lastMessage())
	require.Equal(t, 1, env.s.Cursor())
}

func TestMarks(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "sub/")
	sub := filepath.Join(env.dir, "sub")

	require.NoError(t, env.s.setCwd(sub, ""))
	env.s.RunOp(action.Internal{Name: "mark", Arg: "set"})
	p, ok := env.s.Prompt()
	require.True(t, ok)
	require.True(t, p.Single)
	env.s.SubmitPrompt("a")
	require.Equal(t, "Marked 'a': "+sub, env.lastMessage())

	data, err := os.ReadFile(filepath.Join(env.root, config.MarksFile))
	require.NoError(t, err)
	require.Equal(t, "a\t"+sub+"\n", string(data))

	require.NoError(t, env.s.setCwd(env.dir, ""))
	env.s.SetOverlay(action.OverlayPrompt, promptMarkGoto)
	env.s.SubmitPrompt("a")
	require.Equal(t, sub, env.s.Cwd())

	env.s.gotoMark('x')
	require.Equal(t, "No mark 'x'", env.lastMessage())

	env.s.RunOp(action.Internal{Name: "mark", Arg: "list"})
	require.Equal(t, action.OverlayOutput, env.s.Overlay())
	require.Equal(t, "Marks", env.s.output.title)
	require.Equal(t, []string{"a  " + sub}, env.s.output.lines)

	require.NoError(t, os.Remove(sub))
	env.s.gotoMark('a')
	require.Equal(t, "Mark 'a' not a directory: "+sub, env.lastMessage())
}

func TestYank(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "a", "b")
	env.s.RunOp(action.Internal{Name: "yank", Arg: "path"})
	require.Equal(t, []string{filepath.Join(env.dir, "a")}, env.yanked)
	require.Equal(t, "Yanked: "+filepath.Join(env.dir, "a"), env.lastMessage())

	env.s.RunOp(action.Internal{Name: "select", Arg: "all"})
	env.s.RunOp(action.Internal{Name: "yank", Arg: "path"})
	require.Equal(t, filepath.Join(env.dir, "a")+"\n"+filepath.Join(env.dir, "b"), env.yanked[1])
	require.Equal(t, "Yanked 2 paths", env.lastMessage())
}

func writeTheme(t *testing.T, root, file, body string) {
	t.Helper()
	dir := filepath.Join(root, config.ThemeDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
}

func TestThemePicker_PreviewAndCancel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	writeTheme(t, env.root, "dark.yaml", "dir_fg: blue\n")
	writeTheme(t, env.root, "light.jsonc", "{\n  // comment\n  \"dir_fg\": \"magenta\"\n}\n")

	env.s.RunOp(action.Internal{Name: "cmd", Arg: "theme"})
	require.Equal(t, action.OverlayThemePicker, env.s.Overlay())
	names, idx, ok := env.s.Picker()
	require.True(t, ok)
	require.Equal(t, []string{"dark", "light"}, names)
	require.Equal(t, 0, idx)

	env.s.PickerMove(1)
	require.Equal(t, "magenta", env.s.cfg().UI.Theme["dir_fg"])
	require.Equal(t, "light", env.s.cfg().UI.ThemeName)
	require.Equal(t, "green", env.s.cfg().UI.Theme["exec_fg"], "unset colors keep their value")

	env.s.PickerDone(false)
	require.Equal(t, action.OverlayNone, env.s.Overlay())
	require.Equal(t, "cyan", env.s.cfg().UI.Theme["dir_fg"])
	require.Equal(t, "default", env.s.cfg().UI.ThemeName)
}

func TestThemePicker_Accept(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	writeTheme(t, env.root, "dark.yaml", "dir_fg: blue\n")
	env.s.SetOverlay(action.OverlayThemePicker, "")
	env.s.PickerMove(0)
	env.s.PickerDone(true)
	require.Equal(t, "blue", env.s.cfg().UI.Theme["dir_fg"])
	require.Equal(t, "Theme: dark", env.lastMessage())
}

func TestThemePicker_KeepsConfigFromSameHandler(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name   string
		accept bool
		theme  string
	}{
		{"accept", true, "magenta"},
		{"cancel", false, "cyan"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			writeTheme(t, env.root, "dark.yaml", "dir_fg: blue\n")
			writeTheme(t, env.root, "light.yaml", "dir_fg: magenta\n")

			action.Apply(env.s, action.Effects{
				Overlays: []action.OverlayDirective{{Overlay: action.OverlayThemePicker, Mode: action.Show}},
				Config:   config.Tree{"ui": config.Tree{"sort": "size"}},
			})
			require.Equal(t, action.OverlayThemePicker, env.s.Overlay())
			require.Equal(t, "size", env.s.cfg().UI.Sort)

			env.s.PickerMove(1)
			require.Equal(t, "magenta", env.s.cfg().UI.Theme["dir_fg"])
			require.Equal(t, "size", env.s.cfg().UI.Sort)

			env.s.PickerDone(tc.accept)
			require.Equal(t, action.OverlayNone, env.s.Overlay())
			require.Equal(t, tc.theme, env.s.cfg().UI.Theme["dir_fg"])
			require.Equal(t, "size", env.s.cfg().UI.Sort)
		})
	}
}

func TestThemePicker_PreviewDropsPreviousTheme(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	writeTheme(t, env.root, "a.yaml", "dir_fg: blue\nextra_fg: red\n")
	writeTheme(t, env.root, "b.yaml", "dir_fg: magenta\n")

	env.s.SetOverlay(action.OverlayThemePicker, "")
	env.s.PickerMove(0)
	env.s.PickerMove(1)
	require.Equal(t, "magenta", env.s.cfg().UI.Theme["dir_fg"])
	require.NotContains(t, env.s.cfg().UI.Theme, "extra_fg")
}

func TestThemePicker_NoThemes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.s.SetOverlay(action.OverlayMessages, "")
	env.s.SetOverlay(action.OverlayThemePicker, "")
	require.Equal(t, action.OverlayMessages, env.s.Overlay(), "the current overlay stays")
	require.Equal(t, "Theme picker: no themes found in "+filepath.Join(env.root, config.ThemeDir), env.lastMessage())
}
