package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/ncruces/go-strftime"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/keymap"
	"github.com/joeycumines/lsj/internal/listing"
	"github.com/joeycumines/lsj/internal/termui/scrollbar"
)

// View draws a header line, the three panes and a status line. An open
// overlay covers the bottom of the panes, leaving the preview geometry
// unchanged.
func (m *Model) View() string {
	s := m.state
	if s.Quitting() {
		return ""
	}
	st := newStyles(s.cfg().UI.Theme)
	par, cur, pv := s.layout()

	parent := m.paneLines(s.parent, s.parentIdx, centerOffset(s.parentIdx, len(s.parent), par.h), par, false, st)
	current := m.paneLines(s.entries, s.cursor, s.offset, cur, true, st)
	if len(s.entries) == 0 && cur.h > 0 {
		current[0] = fit(st.info.Render("<empty>"), cur.w)
	}
	bar := scrollbar.New(len(s.entries), cur.h, s.offset)
	bar.Thumb, bar.Track = st.title, st.border
	sep := bar.Lines()
	left := st.border.Render("│")

	body := make([]string, cur.h)
	for i := range body {
		var prev string
		if i < len(s.previewLines) {
			prev = s.previewLines[i]
		}
		body[i] = parent[i] + left + current[i] + sep[i] + fit(prev, pv.w)
	}

	if box := m.overlayBox(s.width, cur.h, st); len(box) != 0 {
		copy(body[len(body)-len(box):], box)
	}

	lines := make([]string, 0, s.height)
	lines = append(lines, m.header(s.width, st))
	lines = append(lines, body...)
	lines = append(lines, m.status(s.width, st))
	return strings.Join(lines, "\n")
}

// centerOffset scrolls a list of n rows so index sits mid-window.
func centerOffset(index, n, h int) int {
	return max(min(index-h/2, n-h), 0)
}

// fit truncates or pads s to exactly w cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	s = ansi.Truncate(s, w, "")
	if pad := w - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func (m *Model) paneLines(entries []listing.Entry, cursor, offset int, r rect, info bool, st styles) []string {
	out := make([]string, r.h)
	ui := m.state.cfg().UI
	f := m.state.formatter()
	for i := range out {
		idx := offset + i
		if idx >= len(entries) || r.w <= 0 {
			out[i] = strings.Repeat(" ", max(r.w, 0))
			continue
		}
		e := entries[idx]
		var field string
		if info {
			field = f.Info(e, ui.Show)
		}
		text := rowText(ui.Row.Icon, ui.Row.Left, ui.Row.Middle, ui.Row.Right, displayName(e), field, r.w)
		out[i] = m.rowStyle(e, idx == cursor, st).Render(text)
	}
	return out
}

// rowText expands the row templates and lays the result out in w cells:
// the left and middle parts are truncated with "~" so the right part stays
// visible.
func rowText(icon, left, middle, right, name, info string, w int) string {
	r := strings.NewReplacer("{name}", name, "{info}", info)
	lhs := icon + r.Replace(left) + r.Replace(middle)
	rhs := r.Replace(right)
	rw := runewidth.StringWidth(rhs)
	if rw == 0 || rw+2 > w {
		return runewidth.FillRight(runewidth.Truncate(lhs, w, "~"), w)
	}
	lw := w - rw - 1
	return runewidth.FillRight(runewidth.Truncate(lhs, lw, "~"), lw) + " " + rhs
}

func (m *Model) rowStyle(e listing.Entry, cursor bool, st styles) lipgloss.Style {
	s := m.state
	switch {
	case cursor:
		return st.selected
	case s.selected[e.Path]:
		return st.marked
	case s.clip.mode != clipNone && containsPath(s.clip.items, e.Path) && filepath.Dir(e.Path) == s.cwd:
		return st.clip
	case e.IsDir:
		return st.dir
	case e.Executable():
		return st.exec
	}
	return lipgloss.NewStyle()
}

func (m *Model) header(width int, st styles) string {
	s := m.state
	ui := s.cfg().UI
	r := strings.NewReplacer(m.placeholders()...)
	left := r.Replace(ui.Header.Left)
	right := r.Replace(ui.Header.Right)
	rw := runewidth.StringWidth(right)
	if rw+1 >= width {
		return st.title.Render(fit(left, width))
	}
	return st.title.Render(fit(left, width-rw-1)) + " " + st.info.Render(right)
}

func (m *Model) placeholders() []string {
	s := m.state
	now := time.Now()
	vals := map[string]string{
		"date":     strftime.Format("%Y-%m-%d", now),
		"time":     strftime.Format("%H:%M:%S", now),
		"cwd":      s.cwd,
		"username": m.user,
		"hostname": m.host,
	}
	if e, ok := s.Current(); ok {
		f := s.formatter()
		vals["current_file"] = e.Path
		vals["current_file_name"] = e.Name
		vals["current_file_extension"] = e.Extension()
		vals["current_file_permissions"] = listing.Permissions(e.Mode)
		vals["current_file_ctime"] = f.Time(e.Created)
		vals["current_file_mtime"] = f.Time(e.ModTime)
		if !e.IsDir {
			vals["current_file_size"] = f.Size(e.Size)
		}
	}
	var pairs []string
	for _, k := range []string{
		"date", "time", "cwd", "username", "hostname",
		"current_file_name", "current_file_extension", "current_file_permissions",
		"current_file_size", "current_file_ctime", "current_file_mtime", "current_file",
	} {
		pairs = append(pairs, "{"+k+"}", vals[k])
	}
	return pairs
}

func (m *Model) status(width int, st styles) string {
	s := m.state
	ui := s.cfg().UI
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d", min(s.cursor+1, len(s.entries)), len(s.entries))
	if n := len(s.selected); n != 0 {
		fmt.Fprintf(&b, " sel:%d", n)
	}
	if s.clip.mode != clipNone {
		fmt.Fprintf(&b, " %s:%d", s.clip.mode, len(s.clip.items))
	}
	b.WriteString(" sort:" + ui.Sort)
	if ui.SortReverse {
		b.WriteString(" (rev)")
	}
	if ui.ShowHidden {
		b.WriteString(" hidden")
	}
	if p := m.pendingText(); p != "" {
		b.WriteString(" keys:" + p)
	}
	left := b.String()

	var right string
	style := st.info
	if recent := s.messages.Recent(1); len(recent) == 1 {
		right = recent[0].String()
		if recent[0].Level >= slog.LevelError {
			style = st.errText
		}
	}
	lw := runewidth.StringWidth(left)
	if right == "" || lw+2 > width {
		return fit(left, width)
	}
	return left + "  " + style.Render(fit(right, width-lw-2))
}

// overlayBox renders the active overlay as a bordered box no taller than
// h rows.
func (m *Model) overlayBox(width, h int, st styles) []string {
	s := m.state
	maxContent := h - 2
	if maxContent < 1 || width < 6 {
		return nil
	}
	inner := width - 4

	var content []string
	switch s.Overlay() {
	case action.OverlayWhichKey:
		content = keymap.WhichKeyLines(s.wk.prefix, s.wk.cands, inner)
		if len(content) == 0 {
			content = []string{"keys: " + keymap.Format(s.wk.prefix), "no bindings"}
		}
		content[0] = st.whichKey.Render(content[0])
		content = content[:min(len(content), maxContent)]

	case action.OverlayMessages, action.OverlayOutput:
		title, _ := m.viewportText()
		m.fillViewport(inner, maxContent-1)
		content = append([]string{st.title.Render(title)}, strings.Split(m.vp.View(), "\n")...)

	case action.OverlayThemePicker:
		names, idx, _ := s.Picker()
		content = append(content, st.title.Render("Theme"))
		rows := maxContent - 1
		off := centerOffset(idx, len(names), rows)
		for i := off; i < len(names) && i < off+rows; i++ {
			if i == idx {
				content = append(content, st.selected.Render("> "+names[i]))
			} else {
				content = append(content, "  "+names[i])
			}
		}

	case action.OverlayPrompt:
		p, _ := s.Prompt()
		content = append(content, st.title.Render(p.Title)+" "+m.input.View())
		if p.Kind == promptCommand && maxContent > 1 {
			if c := Complete(m.input.Value()); len(c) != 0 {
				content = append(content, st.info.Render(fit(strings.Join(c, " "), inner)))
			}
		}

	case action.OverlayConfirm:
		q, _ := s.Question()
		content = append(content, q)

	default:
		return nil
	}

	for i, l := range content {
		content[i] = fit(l, inner)
	}
	box := st.overlay.Width(width - 2).Render(strings.Join(content, "\n"))
	lines := strings.Split(box, "\n")
	return lines[:min(len(lines), h)]
}

func (m *Model) viewportText() (string, []string) {
	s := m.state
	if s.Overlay() == action.OverlayMessages {
		return fmt.Sprintf("Messages (%d)", s.messages.Len()), s.messages.Lines()
	}
	title := s.output.title
	if title == "" {
		title = "Output"
	}
	return title, s.output.lines
}

// fillViewport sizes the scrolling overlay and loads its text.
func (m *Model) fillViewport(width, maxHeight int) {
	_, lines := m.viewportText()
	if len(lines) == 0 {
		lines = []string{"<empty>"}
	}
	m.vp.Width = width
	m.vp.Height = max(min(len(lines), maxHeight), 1)
	m.vp.SetContent(strings.Join(lines, "\n"))
}
