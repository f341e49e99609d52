package action

import (
	"path/filepath"
	"strings"

	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/procexec"
)

// Overlay identifies the single modal state of the UI.
type Overlay uint8

const (
	OverlayNone Overlay = iota
	OverlayWhichKey
	OverlayMessages
	OverlayOutput
	OverlayThemePicker
	OverlayPrompt
	OverlayConfirm
)

var overlayNames = [...]string{"none", "which_key", "messages", "output", "theme_picker", "prompt", "confirm"}

func (o Overlay) String() string {
	if int(o) < len(overlayNames) {
		return overlayNames[o]
	}
	return "unknown"
}

// Mode is what an overlay directive does.
type Mode uint8

const (
	Show Mode = iota + 1
	Hide
	Toggle
)

// OverlayDirective shows, hides or toggles one overlay. Arg names the
// prompt or confirmation kind.
type OverlayDirective struct {
	Overlay Overlay
	Mode    Mode
	Arg     string
}

// Redraw is a redraw request.
type Redraw uint8

const (
	RedrawNone Redraw = iota
	RedrawPartial
	RedrawFull
)

// Effects is the normalised record of what a handler asked for.
type Effects struct {
	Overlays []OverlayDirective
	// Config is an overlay merged into the live configuration.
	Config config.Tree
	// Ops are host operations (navigation, file and clipboard operations,
	// command lines) run after the configuration is updated.
	Ops        []Internal
	Output     *Output
	Messages   []string
	Errors     []string
	Selection  *int
	SelectLast bool
	Redraw     Redraw
	Quit       bool
}

// Output is literal text for the output overlay.
type Output struct {
	Title string
	Text  string
}

// Merge folds later effects into e; later values win.
func (e *Effects) Merge(o Effects) {
	e.Overlays = append(e.Overlays, o.Overlays...)
	if len(o.Config) != 0 {
		e.Config = config.Merge(e.Config, o.Config)
	}
	e.Ops = append(e.Ops, o.Ops...)
	if o.Output != nil {
		e.Output = o.Output
	}
	e.Messages = append(e.Messages, o.Messages...)
	e.Errors = append(e.Errors, o.Errors...)
	if o.Selection != nil {
		e.Selection, e.SelectLast = o.Selection, false
	}
	if o.SelectLast {
		e.Selection, e.SelectLast = nil, true
	}
	e.Redraw = max(e.Redraw, o.Redraw)
	e.Quit = e.Quit || o.Quit
}

// Empty reports whether e asks for nothing.
func (e Effects) Empty() bool {
	return len(e.Overlays) == 0 && len(e.Config) == 0 && len(e.Ops) == 0 &&
		e.Output == nil && len(e.Messages) == 0 && len(e.Errors) == 0 &&
		e.Selection == nil && !e.SelectLast && e.Redraw == RedrawNone && !e.Quit
}

// Context is the per-dispatch snapshot handed to handlers.
type Context struct {
	Cwd           string
	SelectedIndex int
	Count         int
	CurrentFile   string
	CurrentCtime  string
	CurrentMtime  string
	SelectedPaths []string
	// Preview pane geometry, used for placeholders.
	Width  int
	Height int
	X      int
	Y      int
}

// Tree renders the context subtree placed at config.context.
func (c Context) Tree() config.Tree {
	t := config.Tree{
		"cwd":            c.Cwd,
		"selected_index": int64(c.SelectedIndex),
		"current_len":    int64(c.Count),
	}
	if c.CurrentFile != "" {
		t["current_file"] = c.CurrentFile
		t["current_file_dir"] = filepath.Dir(c.CurrentFile)
		t["current_file_name"] = filepath.Base(c.CurrentFile)
		t["current_file_extension"] = extension(c.CurrentFile)
		t["current_file_ctime"] = c.CurrentCtime
		t["current_file_mtime"] = c.CurrentMtime
	}
	return t
}

// Vars returns the placeholder values for the highlighted entry.
func (c Context) Vars() procexec.Vars {
	v := procexec.Vars{Width: c.Width, Height: c.Height, X: c.X, Y: c.Y, Directory: c.Cwd}
	if c.CurrentFile != "" {
		v.Path = c.CurrentFile
		v.Directory = filepath.Dir(c.CurrentFile)
		v.Name = filepath.Base(c.CurrentFile)
		v.Extension = extension(c.CurrentFile)
	}
	return v
}

func extension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
