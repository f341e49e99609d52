package app

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/fsops"
)

func (s *State) clipboardOp(arg string) {
	switch arg {
	case "copy", "move":
		items := s.targets()
		if len(items) == 0 {
			if arg == "copy" {
				s.AddMessage("Copy: no items selected")
			} else {
				s.AddMessage("Move: no items selected")
			}
			return
		}
		if arg == "copy" {
			s.clip = clipboardSet{mode: clipCopy, items: items}
			s.AddMessage("Copied selection to clipboard")
		} else {
			s.clip = clipboardSet{mode: clipMove, items: items}
			s.AddMessage("Move selection armed")
		}
	case "paste":
		s.paste()
	case "clear":
		s.clip = clipboardSet{}
		s.AddMessage("Clipboard cleared")
	}
}

// Clipboard returns the clipboard mode ("copy", "move" or "") and items.
func (s *State) Clipboard() (string, []string) {
	return s.clip.mode.String(), slices.Clone(s.clip.items)
}

func (s *State) paste() {
	if s.clip.mode == clipNone || len(s.clip.items) == 0 {
		s.AddMessage("Paste: clipboard empty")
		return
	}
	move := s.clip.mode == clipMove
	sum := fsops.Paste(s.clip.items, s.cwd, move)
	for _, d := range sum.Details {
		if strings.HasPrefix(d, "Error:") {
			s.AddError(d)
		} else {
			s.AddMessage(d)
		}
	}
	s.AddMessage(sum.String())
	if move && len(sum.Moved) != 0 {
		for src := range sum.Moved {
			delete(s.selected, src)
		}
		for i, p := range s.clip.items {
			if dst, ok := sum.Moved[p]; ok {
				s.clip.items[i] = dst
			}
		}
	}
	s.relist()
	s.RequestRedraw(true)
}

func (s *State) yank() {
	paths := s.targets()
	if len(paths) == 0 {
		s.AddMessage("Yank: no items selected")
		return
	}
	if err := s.writeClip(strings.Join(paths, "\n")); err != nil {
		s.AddError(fmt.Sprintf("yank: %v", err))
		return
	}
	if len(paths) == 1 {
		s.AddMessage("Yanked: " + paths[0])
	} else {
		s.AddMessage(fmt.Sprintf("Yanked %d paths", len(paths)))
	}
}

// search sets the find text and moves to the first match at or after the
// cursor.
func (s *State) search(text string) {
	s.find = text
	if text == "" {
		return
	}
	s.findFrom(s.cursor, 1)
}

func (s *State) searchNext(dir int) {
	if s.find == "" {
		s.AddMessage("Find: no search text")
		return
	}
	s.findFrom(s.cursor+dir, dir)
}

// findFrom scans from start in direction dir, wrapping around once.
func (s *State) findFrom(start, dir int) {
	n := len(s.entries)
	needle := strings.ToLower(s.find)
	for i := range n {
		idx := ((start+i*dir)%n + n) % n
		if strings.Contains(strings.ToLower(s.entries[idx].Name), needle) {
			s.SetSelection(idx)
			return
		}
	}
	s.AddMessage(fmt.Sprintf("Find: no match for '%s'", s.find))
}

func (s *State) setMark(key rune) {
	if err := s.marks.Put(key, s.cwd); err != nil {
		s.AddError(fmt.Sprintf("mark: %v", err))
		return
	}
	s.AddMessage(fmt.Sprintf("Marked '%c': %s", key, s.cwd))
}

func (s *State) gotoMark(key rune) {
	dir, err := s.marks.Get(key)
	if err != nil {
		s.AddMessage(fmt.Sprintf("No mark '%c'", key))
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.AddError(fmt.Sprintf("Mark '%c' not a directory: %s", key, dir))
		return
	}
	if err := s.setCwd(dir, ""); err != nil {
		s.AddError(err.Error())
		return
	}
	s.AddMessage(fmt.Sprintf("Jumped to '%c': %s", key, dir))
}

func (s *State) showMarks() {
	s.SetOutput("Marks", s.marks.String())
	s.SetOverlay(action.OverlayOutput, "")
}
