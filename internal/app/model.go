package app

import (
	"context"
	"os"
	"os/user"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/keymap"
)

// expireMsg fires when a pending key sequence times out.
type expireMsg struct{ generation uint64 }

// Model adapts State to a bubbletea program. Every message is handled to
// completion before the next, so State needs no locking.
type Model struct {
	state   *State
	ctx     context.Context
	watcher *dirWatcher

	input   textinput.Model
	vp      viewport.Model
	seenSeq uint64

	user, host string
}

var _ tea.Model = (*Model)(nil)

// NewModel wraps s. ctx bounds every handler run from the program.
func NewModel(ctx context.Context, s *State) *Model {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 4096
	m := &Model{state: s, ctx: ctx, input: in, vp: viewport.New(0, 0)}
	if u, err := user.Current(); err == nil {
		m.user = u.Username
	}
	m.host, _ = os.Hostname()
	if w, err := newDirWatcher(); err != nil {
		s.log.Warn("directory watcher unavailable", "error", err)
	} else {
		m.watcher = w
	}
	m.sync()
	return m
}

// Close stops the directory watcher.
func (m *Model) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

func (m *Model) Init() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Wait()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.state.Resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	case expireMsg:
		m.state.Expire(m.ctx, msg.generation, time.Now())

	case dirChangedMsg:
		m.state.Refresh()
		if m.watcher != nil {
			cmds = append(cmds, m.watcher.Wait())
		}
	}

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

// sync brings the preview, the watcher and the widgets up to date after
// the state changed, and turns redraw and quit requests into commands.
func (m *Model) sync() tea.Cmd {
	s := m.state
	s.RefreshPreview(m.ctx)
	if m.watcher != nil {
		if err := m.watcher.Watch(s.Cwd()); err != nil {
			s.trace.Debug("watch failed", "dir", s.Cwd(), "error", err)
		}
	}
	if seq := s.OverlaySeq(); seq != m.seenSeq {
		m.seenSeq = seq
		m.resetWidgets()
	}

	full := s.TakeRedraw() == action.RedrawFull
	switch {
	case s.Quitting():
		return tea.Quit
	case full:
		return tea.ClearScreen
	}
	return nil
}

func (m *Model) resetWidgets() {
	m.input.Reset()
	m.input.Blur()
	if p, ok := m.state.Prompt(); ok {
		m.input.SetValue(p.Value)
		m.input.CursorEnd()
		m.input.Focus()
	}
	m.vp.GotoTop()
	if m.state.Overlay() == action.OverlayMessages {
		_, cur, _ := m.state.layout()
		m.fillViewport(max(m.state.width-4, 1), max(cur.h-3, 1))
		m.vp.GotoBottom()
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	s := m.state
	switch s.Overlay() {
	case action.OverlayPrompt:
		return m.promptKey(msg)

	case action.OverlayConfirm:
		switch msg.String() {
		case "y", "Y":
			s.Confirm(true)
		case "n", "N", "esc", "ctrl+c", "q":
			s.Confirm(false)
		}
		return nil

	case action.OverlayThemePicker:
		switch msg.String() {
		case "j", "down":
			s.PickerMove(1)
		case "k", "up":
			s.PickerMove(-1)
		case "enter":
			s.PickerDone(true)
		case "esc", "q", "ctrl+c":
			s.PickerDone(false)
		}
		return nil

	case action.OverlayOutput, action.OverlayMessages:
		switch msg.String() {
		case "esc", "q":
			s.CloseOverlay()
			return nil
		case "g", "home":
			m.vp.GotoTop()
			return nil
		case "G", "end":
			m.vp.GotoBottom()
			return nil
		case "up", "down", "k", "j", "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return cmd
		}

	case action.OverlayWhichKey:
		if msg.Type == tea.KeyEsc && len(s.Pending()) == 0 {
			s.CloseOverlay()
			return nil
		}
	}
	return m.feed(msg)
}

func (m *Model) promptKey(msg tea.KeyMsg) tea.Cmd {
	s := m.state
	p, _ := s.Prompt()
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		s.CloseOverlay()
		return nil
	case tea.KeyEnter:
		s.SubmitPrompt(m.input.Value())
		return nil
	case tea.KeyTab:
		if p.Kind == promptCommand {
			m.input.SetValue(CompleteLine(m.input.Value()))
			m.input.CursorEnd()
		}
		return nil
	}
	if p.Single {
		if msg.Type == tea.KeyRunes && len(msg.Runes) != 0 {
			s.SubmitPrompt(string(msg.Runes[0]))
		}
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// feed passes the key to the sequencer. An unbound <C-c> quits so the
// program can always be left.
func (m *Model) feed(msg tea.KeyMsg) tea.Cmd {
	s := m.state
	var cmds []tea.Cmd
	for _, tok := range KeyTokens(msg) {
		if tok == "<C-c>" && len(s.Pending()) == 0 {
			if _, ok := s.keys.Lookup(tok); !ok {
				s.Quit()
				break
			}
		}
		deadline, gen := s.Key(m.ctx, tok, time.Now())
		if !deadline.IsZero() {
			cmds = append(cmds, tea.Tick(time.Until(deadline), func(time.Time) tea.Msg {
				return expireMsg{generation: gen}
			}))
		}
		if s.Quitting() || s.Overlay() == action.OverlayPrompt {
			break
		}
	}
	return tea.Batch(cmds...)
}

// pendingText is the typed prefix of an unfinished sequence.
func (m *Model) pendingText() string { return keymap.Format(m.state.Pending()) }
