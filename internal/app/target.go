package app

import (
	"path/filepath"
	"strings"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
)

var _ action.Target = (*State)(nil)

// Overlay returns the active overlay.
func (s *State) Overlay() action.Overlay { return s.overlay }

// OverlaySeq changes whenever an overlay is opened, so a view can reset
// its widget state.
func (s *State) OverlaySeq() uint64 { return s.overlayN }

// SetOverlay makes o the only active overlay. Overlays that need
// something to act on (a selection, a theme directory) report why and
// leave the current overlay in place when it is missing.
func (s *State) SetOverlay(o action.Overlay, arg string) {
	switch o {
	case action.OverlayThemePicker:
		names, ok := s.themeNames()
		if !ok {
			return
		}
		s.leaveOverlay()
		s.picker = s.newThemePicker(names)
	case action.OverlayPrompt:
		p, ok := s.newPrompt(arg)
		if !ok {
			return
		}
		s.leaveOverlay()
		s.prompt = p
	case action.OverlayConfirm:
		c, ok := s.newConfirm(arg)
		if !ok {
			return
		}
		s.leaveOverlay()
		s.confirm = c
	case action.OverlayWhichKey:
		s.leaveOverlay()
		prefix := s.seq.Pending()
		s.enter(o)
		s.wk = whichKey{prefix: prefix, cands: s.keys.Candidates(prefix)}
		return
	default:
		s.leaveOverlay()
	}
	s.enter(o)
}

// enter records o as the active overlay. Callers have already released
// the state of the previous one.
func (s *State) enter(o action.Overlay) {
	s.overlay = o
	s.overlayN++
	s.wk = whichKey{}
	s.RequestRedraw(false)
}

// leaveOverlay drops the transient state of the active overlay. An
// unconfirmed theme preview is rolled back.
func (s *State) leaveOverlay() {
	if s.picker != nil {
		if err := s.picker.restore(s.store); err != nil {
			s.AddError(err.Error())
		}
		s.picker = nil
		s.configChanged()
	}
	s.prompt = nil
	s.confirm = nil
}

// ApplyConfig merges overlay into the live configuration.
func (s *State) ApplyConfig(overlay config.Tree) error {
	if err := s.store.Apply(overlay); err != nil {
		return err
	}
	s.configChanged()
	return nil
}

// SetOutput replaces the output overlay's text.
func (s *State) SetOutput(title, text string) {
	text = strings.ReplaceAll(text, "\r", "")
	s.output = outputText{title: title, lines: strings.Split(strings.TrimRight(text, "\n"), "\n")}
	if text == "" {
		s.output.lines = nil
	}
}

// AddMessage records an informational message.
func (s *State) AddMessage(text string) { s.log.Info(text) }

// AddError records an error message.
func (s *State) AddError(text string) { s.log.Error(text) }

// ItemCount is the number of entries in the current pane.
func (s *State) ItemCount() int { return len(s.entries) }

// SetSelection moves the cursor.
func (s *State) SetSelection(index int) {
	s.cursor = max(min(index, len(s.entries)-1), 0)
	s.syncOffset()
}

// RequestRedraw asks for a repaint; a full one clears the screen first.
func (s *State) RequestRedraw(full bool) {
	r := action.RedrawPartial
	if full {
		r = action.RedrawFull
	}
	s.redraw = max(s.redraw, r)
}

// Quit requests exit. Repeated calls have no further effect.
func (s *State) Quit() { s.quit = true }

// RunOp performs a host operation named by an action.
func (s *State) RunOp(op action.Internal) {
	switch op.Name {
	case "nav":
		s.navigate(op.Arg)
	case "select":
		switch op.Arg {
		case "toggle":
			s.toggleSelected()
		case "clear":
			clear(s.selected)
		case "all":
			for _, e := range s.entries {
				s.selected[e.Path] = true
			}
		}
	case "clipboard":
		s.clipboardOp(op.Arg)
	case "file":
		switch op.Arg {
		case "add":
			s.SetOverlay(action.OverlayPrompt, promptAdd)
		case "rename":
			s.SetOverlay(action.OverlayPrompt, promptRename)
		case "delete":
			s.SetOverlay(action.OverlayConfirm, confirmDelete)
		}
	case "find":
		switch op.Arg {
		case "open":
			s.SetOverlay(action.OverlayPrompt, promptFind)
		case "next":
			s.searchNext(1)
		case "prev":
			s.searchNext(-1)
		}
	case "mark":
		switch op.Arg {
		case "set":
			s.SetOverlay(action.OverlayPrompt, promptMarkSet)
		case "goto":
			s.SetOverlay(action.OverlayPrompt, promptMarkGoto)
		case "list":
			s.showMarks()
		}
	case "messages":
		s.messages.Clear()
	case "yank":
		s.yank()
	case "cmd":
		if op.Arg == "open" {
			s.SetOverlay(action.OverlayPrompt, promptCommand)
			return
		}
		s.Exec(op.Arg)
	default:
		s.AddError("Unknown action: " + op.String())
	}
}

func (s *State) navigate(arg string) {
	_, cur, _ := s.layout()
	switch arg {
	case "up":
		s.SetSelection(s.cursor - 1)
	case "down":
		s.SetSelection(s.cursor + 1)
	case "pageup":
		s.SetSelection(s.cursor - max(cur.h, 1))
	case "pagedown":
		s.SetSelection(s.cursor + max(cur.h, 1))
	case "top":
		s.SetSelection(0)
	case "bottom":
		s.SetSelection(len(s.entries) - 1)
	case "parent":
		up := filepath.Dir(s.cwd)
		if up == s.cwd {
			return
		}
		if err := s.setCwd(up, filepath.Base(s.cwd)); err != nil {
			s.AddError(err.Error())
		}
	case "enter":
		e, ok := s.Current()
		if !ok || !e.IsDir {
			return
		}
		if err := s.setCwd(e.Path, ""); err != nil {
			s.AddError(err.Error())
		}
	}
}

func (s *State) toggleSelected() {
	e, ok := s.Current()
	if !ok {
		return
	}
	if s.selected[e.Path] {
		delete(s.selected, e.Path)
	} else {
		s.selected[e.Path] = true
	}
}
