// Package app owns the browser state and drives it from terminal events.
// State is the single mutable owner of everything the panes show; Model
// adapts it to a bubbletea program.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/atotto/clipboard"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/keymap"
	"github.com/joeycumines/lsj/internal/listing"
	"github.com/joeycumines/lsj/internal/marks"
	"github.com/joeycumines/lsj/internal/preview"
	"github.com/joeycumines/lsj/internal/scripting"
	"github.com/joeycumines/lsj/internal/trace"
)

// Options configure a State.
type Options struct {
	// Dir is the starting directory; empty means the working directory.
	Dir string
	// Root is the configuration root holding marks and themes.
	Root  string
	Store *config.Store
	Keys  *keymap.Map[action.Handler]
	// Scripts runs script-bound handlers; nil reports them as unavailable.
	Scripts action.ScriptRunner
	// Previewer supplies preview commands; nil always uses the built-in
	// display.
	Previewer preview.CommandSource
	Runner    preview.Runner
	Messages  *scripting.MessageLog
	Trace     *slog.Logger
	// Clipboard writes to the system clipboard.
	Clipboard func(string) error
	// Reload loads the configuration documents again for the reload
	// command. On failure it may still return the state left active.
	Reload func() (*config.Store, *keymap.Map[action.Handler], error)
}

type clipMode uint8

const (
	clipNone clipMode = iota
	clipCopy
	clipMove
)

func (m clipMode) String() string {
	switch m {
	case clipCopy:
		return "copy"
	case clipMove:
		return "move"
	}
	return ""
}

type clipboardSet struct {
	mode  clipMode
	items []string
}

// listKey is the part of the configuration the directory listing
// depends on.
type listKey struct {
	hidden  bool
	sort    string
	reverse bool
	max     int
}

type outputText struct {
	title string
	lines []string
}

type whichKey struct {
	prefix []string
	cands  []keymap.Candidate
	// auto is set when the overlay was opened by a pending sequence, so
	// resolving the sequence closes it again.
	auto bool
}

// State is the browser. It is not safe for concurrent use.
type State struct {
	root       string
	store      *config.Store
	keys       *keymap.Map[action.Handler]
	seq        *keymap.Sequencer[action.Handler]
	dispatcher *action.Dispatcher
	previews   *preview.Cache
	messages   *scripting.MessageLog
	log        *slog.Logger
	trace      *slog.Logger
	marks      *marks.Set
	writeClip  func(string) error
	reload     func() (*config.Store, *keymap.Map[action.Handler], error)

	cwd       string
	entries   []listing.Entry
	parent    []listing.Entry
	parentIdx int
	cursor    int
	offset    int
	listed    listKey
	selected  map[string]bool
	clip      clipboardSet
	find      string

	overlay  action.Overlay
	output   outputText
	wk       whichKey
	prompt   *prompt
	confirm  *confirm
	picker   *themePicker
	overlayN uint64

	previewLines []string
	previewCmd   string

	width  int
	height int
	redraw action.Redraw
	quit   bool
}

// New builds a State and lists the starting directory.
func New(opts Options) (*State, error) {
	if opts.Store == nil {
		opts.Store = config.NewStore()
	}
	if opts.Keys == nil {
		opts.Keys = keymap.NewMap[action.Handler]()
	}
	if opts.Messages == nil {
		opts.Messages = scripting.NewMessageLog(0)
	}
	if opts.Trace == nil {
		opts.Trace = trace.Discard()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cfg := opts.Store.Config()
	s := &State{
		root:      opts.Root,
		store:     opts.Store,
		keys:      opts.Keys,
		seq:       keymap.NewSequencer(opts.Keys, time.Duration(cfg.Keys.SequenceTimeoutMS)*time.Millisecond),
		messages:  opts.Messages,
		log:       opts.Messages.Logger(),
		trace:     opts.Trace,
		writeClip: opts.Clipboard,
		reload:    opts.Reload,
		cwd:       dir,
		selected:  make(map[string]bool),
		width:     80,
		height:    24,
	}
	s.dispatcher = &action.Dispatcher{Scripts: opts.Scripts, Log: s.log, Trace: s.trace}
	s.previews = preview.NewCache(opts.Previewer, opts.Runner, s.previewOptions())
	s.previews.Log, s.previews.Trace = s.log, s.trace

	marksPath := ""
	if opts.Root != "" {
		marksPath = filepath.Join(opts.Root, config.MarksFile)
	}
	if s.marks, err = marks.Load(marksPath); err != nil {
		s.log.Warn(fmt.Sprintf("marks: %v", err))
	}

	s.relist()
	return s, nil
}

func (s *State) cfg() *config.Config { return s.store.Config() }

func (s *State) previewOptions() preview.Options {
	ui := s.cfg().UI
	return preview.Options{MaxLines: ui.PreviewLines, Highlight: ui.PreviewHighlight, CacheSize: ui.PreviewCacheSize}
}

// Cwd returns the directory shown in the current pane.
func (s *State) Cwd() string { return s.cwd }

// Entries returns the current pane's entries.
func (s *State) Entries() []listing.Entry { return s.entries }

// Cursor returns the highlighted index.
func (s *State) Cursor() int { return s.cursor }

// Current returns the highlighted entry.
func (s *State) Current() (listing.Entry, bool) {
	if s.cursor < 0 || s.cursor >= len(s.entries) {
		return listing.Entry{}, false
	}
	return s.entries[s.cursor], true
}

// Selected returns the multi-selection, sorted.
func (s *State) Selected() []string {
	out := make([]string, 0, len(s.selected))
	for p := range s.selected {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Quitting reports whether a quit was requested.
func (s *State) Quitting() bool { return s.quit }

// TakeRedraw returns and clears the pending redraw request.
func (s *State) TakeRedraw() action.Redraw {
	r := s.redraw
	s.redraw = action.RedrawNone
	return r
}

// Resize records the terminal size.
func (s *State) Resize(width, height int) {
	s.width, s.height = max(width, 1), max(height, 1)
	s.syncOffset()
}

// Context is the snapshot handed to handlers.
func (s *State) Context() action.Context {
	_, _, pv := s.layout()
	c := action.Context{
		Cwd:           s.cwd,
		SelectedIndex: s.cursor,
		Count:         len(s.entries),
		SelectedPaths: s.targets(),
		Width:         pv.w,
		Height:        pv.h,
		X:             pv.x,
		Y:             pv.y,
	}
	if e, ok := s.Current(); ok {
		f := s.formatter()
		f.Mode = listing.Absolute
		c.CurrentFile = e.Path
		c.CurrentCtime = f.Time(e.Created)
		c.CurrentMtime = f.Time(e.ModTime)
	}
	return c
}

func (s *State) formatter() listing.Formatter {
	ui := s.cfg().UI
	return listing.Formatter{Mode: ui.DisplayMode, DateFormat: ui.DateFormat}
}

// targets is the multi-selection or, when it is empty, the highlighted
// entry.
func (s *State) targets() []string {
	if len(s.selected) != 0 {
		return s.Selected()
	}
	if e, ok := s.Current(); ok {
		return []string{e.Path}
	}
	return nil
}

// Key feeds one key token to the sequencer and dispatches whatever it
// resolves. When the sequencer is left waiting with a deadline, Expire
// should be called with the returned generation once it passes.
func (s *State) Key(ctx context.Context, token string, now time.Time) (deadline time.Time, generation uint64) {
	for _, st := range s.seq.Feed(token, now) {
		s.trace.LogAttrs(ctx, slog.LevelDebug, "key",
			slog.String("token", token),
			slog.String("step", st.Kind.String()),
			slog.String("sequence", keymap.Format(st.Tokens)))
		switch st.Kind {
		case keymap.Pending:
			if s.cfg().Keys.WhichKey && len(st.Candidates) != 0 && (s.overlay == action.OverlayNone || s.overlay == action.OverlayWhichKey) {
				s.enter(action.OverlayWhichKey)
				s.wk = whichKey{prefix: st.Tokens, cands: st.Candidates, auto: true}
			}
			deadline, generation = st.Deadline, st.Generation
		case keymap.Resolved:
			s.closeAutoWhichKey()
			s.Dispatch(ctx, st.Binding.Handler)
		default:
			s.closeAutoWhichKey()
		}
	}
	return deadline, generation
}

// Expire resolves a pending sequence whose timeout fired.
func (s *State) Expire(ctx context.Context, generation uint64, now time.Time) {
	st, ok := s.seq.Expire(generation, now)
	if !ok {
		return
	}
	s.closeAutoWhichKey()
	if st.Kind == keymap.Resolved {
		s.Dispatch(ctx, st.Binding.Handler)
	}
}

// Pending returns the keys typed so far of an unfinished sequence.
func (s *State) Pending() []string { return s.seq.Pending() }

func (s *State) closeAutoWhichKey() {
	if s.overlay == action.OverlayWhichKey && s.wk.auto {
		s.enter(action.OverlayNone)
	}
}

// Dispatch runs h and applies its effects.
func (s *State) Dispatch(ctx context.Context, h action.Handler) {
	eff := s.dispatcher.Dispatch(ctx, h, s.cfg(), s.store.Tree(), s.Context())
	action.Apply(s, eff)
}

// Reconfigure adopts a freshly loaded configuration and key map.
func (s *State) Reconfigure(store *config.Store, keys *keymap.Map[action.Handler]) {
	if store != nil {
		s.store = store
	}
	if keys != nil {
		s.keys = keys
		s.seq.SetMap(keys)
	}
	s.configChanged()
}

func (s *State) configChanged() {
	cfg := s.cfg()
	s.seq.SetTimeout(time.Duration(cfg.Keys.SequenceTimeoutMS) * time.Millisecond)
	s.previews.SetOptions(s.previewOptions())
	if s.currentListKey() != s.listed {
		s.relist()
	}
}

func (s *State) currentListKey() listKey {
	ui := s.cfg().UI
	return listKey{hidden: ui.ShowHidden, sort: ui.Sort, reverse: ui.SortReverse, max: ui.MaxListItems}
}

// relist reads the current and parent directories again, keeping the
// highlighted entry by name where it still exists.
func (s *State) relist() {
	var keep string
	if e, ok := s.Current(); ok {
		keep = e.Name
	}
	s.listed = s.currentListKey()
	opts := listing.Options{ShowHidden: s.listed.hidden, Sort: s.listed.sort, Reverse: s.listed.reverse, Max: s.listed.max}

	entries, err := listing.Read(s.cwd, opts)
	if err != nil {
		s.log.Error(fmt.Sprintf("list %s: %v", s.cwd, err))
	}
	s.entries = entries
	if !s.reselect(keep) {
		s.cursor = min(s.cursor, max(len(s.entries)-1, 0))
	}

	s.parent, s.parentIdx = nil, -1
	if up := filepath.Dir(s.cwd); up != s.cwd {
		if parent, err := listing.Read(up, opts); err == nil {
			s.parent = parent
			base := filepath.Base(s.cwd)
			s.parentIdx = slices.IndexFunc(parent, func(e listing.Entry) bool { return e.Name == base })
		}
	}
	s.syncOffset()
}

// Refresh relists after an outside change to the directory. Cached
// previews may be stale, so they are dropped too.
func (s *State) Refresh() {
	s.previews.Clear()
	s.relist()
}

func (s *State) reselect(name string) bool {
	if name == "" {
		return false
	}
	if i := slices.IndexFunc(s.entries, func(e listing.Entry) bool { return e.Name == name }); i >= 0 {
		s.cursor = i
		return true
	}
	return false
}

// setCwd changes directory. select names the entry to highlight in the
// new listing.
func (s *State) setCwd(dir, selectName string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", abs)
	}
	s.cwd = abs
	s.cursor, s.offset = 0, 0
	s.entries = nil
	s.relist()
	s.reselect(selectName)
	s.syncOffset()
	return nil
}

// syncOffset scrolls the current pane so the cursor is visible.
func (s *State) syncOffset() {
	_, cur, _ := s.layout()
	h := max(cur.h, 1)
	switch {
	case s.cursor < s.offset:
		s.offset = s.cursor
	case s.cursor >= s.offset+h:
		s.offset = s.cursor - h + 1
	}
	s.offset = max(min(s.offset, len(s.entries)-h), 0)
}

// RefreshPreview renders the preview for the highlighted entry.
func (s *State) RefreshPreview(ctx context.Context) {
	e, ok := s.Current()
	_, _, pv := s.layout()
	switch {
	case !ok || pv.w <= 0:
		s.previewLines, s.previewCmd = nil, ""
	case e.IsDir:
		s.previewLines, s.previewCmd = s.dirPreview(e.Path, pv.h), ""
	default:
		p := s.previews.Get(ctx, e.Path, pv.w, pv.h, pv.x, pv.y)
		s.previewLines, s.previewCmd = p.Lines, p.Command
	}
}

func (s *State) dirPreview(dir string, limit int) []string {
	ui := s.cfg().UI
	entries, err := listing.Read(dir, listing.Options{ShowHidden: ui.ShowHidden, Sort: ui.Sort, Reverse: ui.SortReverse, Max: ui.MaxListItems})
	if err != nil {
		return []string{err.Error()}
	}
	if len(entries) == 0 {
		return []string{"<empty>"}
	}
	lines := make([]string, 0, min(len(entries), limit))
	for _, e := range entries {
		if len(lines) == limit {
			break
		}
		lines = append(lines, displayName(e))
	}
	return lines
}

func displayName(e listing.Entry) string {
	if e.IsDir {
		return e.Name + "/"
	}
	return e.Name
}

type rect struct{ x, y, w, h int }

// layout splits the screen into parent, current and preview panes below
// a one line header and above a one line status bar. Panes are separated
// by a single column.
func (s *State) layout() (parent, current, prev rect) {
	p := s.cfg().UI.Panes
	total := max(p.Parent+p.Current+p.Preview, 1)
	h := max(s.height-2, 1)
	avail := max(s.width-2, 0)
	pw := avail * p.Parent / total
	cw := avail * p.Current / total
	vw := avail - pw - cw
	return rect{0, 1, pw, h}, rect{pw + 1, 1, cw, h}, rect{pw + cw + 2, 1, vw, h}
}
