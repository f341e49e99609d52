package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/fsops"
)

// Prompt kinds, as named by the prompt effect field.
const (
	promptAdd      = "add_entry"
	promptRename   = "rename_entry"
	promptCommand  = "command"
	promptFind     = "find"
	promptMarkSet  = "mark_set"
	promptMarkGoto = "mark_goto"
)

const confirmDelete = "delete"

type prompt struct {
	kind  string
	title string
	value string
	// target is the entry a rename applies to.
	target string
	// single prompts complete on the first key.
	single bool
}

type confirm struct {
	kind     string
	question string
	paths    []string
}

type themePicker struct {
	names     []string
	index     int
	origTheme any
	origName  string
}

// Prompt describes the open prompt.
type Prompt struct {
	Kind   string
	Title  string
	Value  string
	Single bool
}

// Prompt returns the open prompt, if any.
func (s *State) Prompt() (Prompt, bool) {
	if s.prompt == nil {
		return Prompt{}, false
	}
	return Prompt{Kind: s.prompt.kind, Title: s.prompt.title, Value: s.prompt.value, Single: s.prompt.single}, true
}

func (s *State) newPrompt(kind string) (*prompt, bool) {
	switch kind {
	case promptAdd:
		return &prompt{kind: kind, title: "Name (end with '/' for folder):"}, true
	case promptRename:
		e, ok := s.Current()
		if !ok {
			s.AddMessage("Rename: no selection")
			return nil, false
		}
		return &prompt{kind: kind, title: fmt.Sprintf("Rename '%s' to:", e.Name), value: e.Name, target: e.Path}, true
	case promptCommand:
		return &prompt{kind: kind, title: ":"}, true
	case promptFind:
		return &prompt{kind: kind, title: "/", value: s.find}, true
	case promptMarkSet:
		return &prompt{kind: kind, title: "Set mark:", single: true}, true
	case promptMarkGoto:
		return &prompt{kind: kind, title: "Go to mark:", single: true}, true
	}
	s.AddError("Unknown prompt: " + kind)
	return nil, false
}

// SubmitPrompt closes the prompt and acts on value.
func (s *State) SubmitPrompt(value string) {
	p := s.prompt
	if p == nil {
		return
	}
	s.leaveOverlay()
	s.enter(action.OverlayNone)

	switch p.kind {
	case promptAdd:
		s.addEntry(value)
	case promptRename:
		s.renameEntry(p.target, value)
	case promptCommand:
		s.Exec(value)
	case promptFind:
		s.search(value)
	case promptMarkSet, promptMarkGoto:
		r, _ := utf8.DecodeRuneInString(value)
		if value == "" || r == utf8.RuneError {
			return
		}
		if p.kind == promptMarkSet {
			s.setMark(r)
		} else {
			s.gotoMark(r)
		}
	}
}

// CloseOverlay closes whatever overlay is open, discarding a prompt or an
// unconfirmed theme preview.
func (s *State) CloseOverlay() {
	s.leaveOverlay()
	s.enter(action.OverlayNone)
}

func (s *State) addEntry(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	path, err := fsops.Create(s.cwd, name)
	if err != nil {
		s.AddError(fmt.Sprintf("Add: %v", err))
		return
	}
	s.AddMessage("Created: " + path)
	first, _, _ := strings.Cut(strings.TrimSuffix(name, "/"), "/")
	s.relist()
	s.reselect(first)
	s.syncOffset()
}

func (s *State) renameEntry(from, name string) {
	name = strings.TrimSpace(name)
	if name == "" || name == filepath.Base(from) {
		return
	}
	to, err := fsops.Rename(from, name)
	if err != nil {
		s.AddError(fmt.Sprintf("Rename: %v", err))
		return
	}
	s.AddMessage(fmt.Sprintf("Renamed: %s -> %s", filepath.Base(from), name))
	s.rewritePaths(map[string]string{from: to})
	s.relist()
	s.reselect(name)
	s.syncOffset()
}

// rewritePaths follows renamed or moved entries in the selection and the
// clipboard, including anything below a moved directory.
func (s *State) rewritePaths(moved map[string]string) {
	rewrite := func(p string) (string, bool) {
		for from, to := range moved {
			if p == from {
				return to, true
			}
			if rel, err := filepath.Rel(from, p); err == nil && fsops.Inside(from, p) {
				return filepath.Join(to, rel), true
			}
		}
		return p, false
	}
	for p := range s.selected {
		if np, ok := rewrite(p); ok {
			delete(s.selected, p)
			s.selected[np] = true
		}
	}
	for i, p := range s.clip.items {
		s.clip.items[i], _ = rewrite(p)
	}
}

func (s *State) newConfirm(kind string) (*confirm, bool) {
	if kind != confirmDelete {
		s.AddError("Unknown confirmation: " + kind)
		return nil, false
	}
	paths := s.targets()
	if len(paths) == 0 {
		s.AddMessage("Delete: no items selected")
		return nil, false
	}
	if !s.cfg().UI.ConfirmDelete {
		s.deletePaths(paths)
		return nil, false
	}
	q := fmt.Sprintf("Delete %d items? (y/n)", len(paths))
	if len(paths) == 1 {
		q = fmt.Sprintf("Delete '%s'? (y/n)", filepath.Base(paths[0]))
	}
	return &confirm{kind: kind, question: q, paths: paths}, true
}

// Question returns the open confirmation's question.
func (s *State) Question() (string, bool) {
	if s.confirm == nil {
		return "", false
	}
	return s.confirm.question, true
}

// Confirm answers the open confirmation.
func (s *State) Confirm(yes bool) {
	c := s.confirm
	if c == nil {
		return
	}
	s.leaveOverlay()
	s.enter(action.OverlayNone)
	if yes {
		s.deletePaths(c.paths)
	}
}

func (s *State) deletePaths(paths []string) {
	sum := fsops.RemoveAll(paths)
	for _, d := range sum.Details {
		s.AddError(d)
	}
	s.AddMessage(sum.String())
	for _, p := range paths {
		delete(s.selected, p)
	}
	if s.clip.mode != clipNone {
		kept := s.clip.items[:0]
		for _, p := range s.clip.items {
			if !containsPath(paths, p) {
				kept = append(kept, p)
			}
		}
		s.clip.items = kept
	}
	s.relist()
	s.RequestRedraw(true)
}

func containsPath(paths []string, p string) bool {
	for _, q := range paths {
		if fsops.Inside(q, p) {
			return true
		}
	}
	return false
}

func (s *State) themeNames() ([]string, bool) {
	themesDir := filepath.Join(s.root, config.ThemeDir)
	if s.root == "" {
		s.AddMessage("Theme picker: unable to determine config directory")
		return nil, false
	}
	names, err := config.ListThemes(s.root)
	if err != nil {
		s.AddError(fmt.Sprintf("Theme picker: %v", err))
		return nil, false
	}
	if len(names) == 0 {
		s.AddMessage("Theme picker: no themes found in " + themesDir)
		return nil, false
	}
	return names, true
}

func (s *State) newThemePicker(names []string) *themePicker {
	theme, _ := s.store.Tree().Get("ui.theme")
	p := &themePicker{names: names, origTheme: theme, origName: s.cfg().UI.ThemeName}
	for i, n := range names {
		if n == s.cfg().UI.ThemeName {
			p.index = i
		}
	}
	return p
}

// Picker returns the theme names and the highlighted index.
func (s *State) Picker() ([]string, int, bool) {
	if s.picker == nil {
		return nil, 0, false
	}
	return s.picker.names, s.picker.index, true
}

// PickerMove highlights another theme and previews it.
func (s *State) PickerMove(delta int) {
	p := s.picker
	if p == nil || len(p.names) == 0 {
		return
	}
	idx := max(min(p.index+delta, len(p.names)-1), 0)
	if idx == p.index && delta != 0 {
		return
	}
	p.index = idx
	staged := s.store.Clone()
	if err := p.restore(staged); err != nil {
		s.AddError(err.Error())
		return
	}
	if err := s.applyTheme(staged, p.names[idx]); err != nil {
		s.AddError(err.Error())
		return
	}
	s.store.Replace(staged)
	s.configChanged()
	s.RequestRedraw(true)
}

// restore puts the theme fields back to what they were when the picker
// opened. Other settings in store are left alone.
func (p *themePicker) restore(store *config.Store) error {
	if p.origTheme != nil {
		if err := store.Set("ui.theme", p.origTheme); err != nil {
			return err
		}
	}
	return store.Set("ui.theme_name", p.origName)
}

// PickerDone closes the picker, keeping the previewed theme when accept is
// set and restoring the previous one otherwise.
func (s *State) PickerDone(accept bool) {
	if s.picker == nil {
		return
	}
	if accept {
		s.AddMessage("Theme: " + s.picker.names[s.picker.index])
		s.picker = nil
	}
	s.CloseOverlay()
	s.RequestRedraw(true)
}

func (s *State) applyTheme(store *config.Store, name string) error {
	colors, err := config.LoadTheme(s.root, name)
	if err != nil {
		return err
	}
	theme := make(config.Tree, len(colors))
	for k, v := range colors {
		theme[k] = v
	}
	return store.Apply(config.Tree{"ui": config.Tree{"theme": theme, "theme_name": name}})
}

// setTheme applies a theme by name, as the theme command and the setTheme
// helper do.
func (s *State) setTheme(name string) error {
	if s.root == "" {
		return fmt.Errorf("theme: unable to determine config directory")
	}
	if err := s.applyTheme(s.store, name); err != nil {
		return err
	}
	s.configChanged()
	s.RequestRedraw(true)
	s.AddMessage("Theme: " + name)
	return nil
}
