package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/gobwas/glob"
	"github.com/sahilm/fuzzy"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/argv"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/listing"
)

type command struct {
	name string
	help string
	run  func(s *State, args string)
}

// commands is the command surface, sorted by name.
var commands []command

func init() {
	commands = []command{
		{"add", "add <name>: create a file, or a folder when name ends in /", (*State).cmdAdd},
		{"cd", "cd <path>: change directory", (*State).cmdCd},
		{"delete", "delete: delete the selection", func(s *State, _ string) { s.SetOverlay(action.OverlayConfirm, confirmDelete) }},
		{"delmark", "delmark <c>...: delete marks", (*State).cmdDelmark},
		{"display", "display absolute|friendly", (*State).cmdDisplay},
		{"find", "find [text]: search entry names", (*State).cmdFind},
		{"goto", "goto <c>: jump to a mark", (*State).cmdGoto},
		{"help", "help: list commands", func(s *State, _ string) {
			s.SetOutput("Commands", strings.Join(CommandHelp(), "\n"))
			s.SetOverlay(action.OverlayOutput, "")
		}},
		{"mark", "mark <c>: mark the current directory", (*State).cmdMark},
		{"marks", "marks: list marks", func(s *State, _ string) { s.showMarks() }},
		{"messages", "messages: toggle the message log", func(s *State, _ string) { s.toggleOverlay(action.OverlayMessages) }},
		{"next", "next: next find match", func(s *State, _ string) { s.searchNext(1) }},
		{"output", "output: toggle the output pane", func(s *State, _ string) { s.toggleOverlay(action.OverlayOutput) }},
		{"prev", "prev: previous find match", func(s *State, _ string) { s.searchNext(-1) }},
		{"quit", "quit: exit", func(s *State, _ string) { s.Quit() }},
		{"reload", "reload: run the configuration documents again", (*State).cmdReload},
		{"rename", "rename <name>: rename the highlighted entry", (*State).cmdRename},
		{"select", "select <glob>: select matching names", (*State).cmdSelect},
		{"select_clear", "select_clear: clear the selection", func(s *State, _ string) { clear(s.selected) }},
		{"select_toggle", "select_toggle: toggle the highlighted entry", func(s *State, _ string) { s.toggleSelected() }},
		{"show", "show none|size|created|modified", (*State).cmdShow},
		{"show_hidden_toggle", "show_hidden_toggle: toggle dotfiles", func(s *State, _ string) {
			s.setConfig("ui.show_hidden", !s.cfg().UI.ShowHidden)
		}},
		{"sort", "sort name|size|mtime|created", (*State).cmdSort},
		{"sort_reverse_toggle", "sort_reverse_toggle: reverse the sort", func(s *State, _ string) {
			s.setConfig("ui.sort_reverse", !s.cfg().UI.SortReverse)
		}},
		{"theme", "theme [name]: set a theme, or open the picker", (*State).cmdTheme},
		{"where", "where <expr>: select entries matching an expression", (*State).cmdWhere},
		{"yank", "yank: copy paths to the system clipboard", func(s *State, _ string) { s.yank() }},
	}
}

// CommandNames lists every command verb.
func CommandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.name
	}
	return names
}

// Exec runs a command line. Commands are separated by ';' outside quotes
// and verbs may be abbreviated to any unambiguous prefix.
func (s *State) Exec(line string) {
	for _, stmt := range argv.Statements(line) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		verb, args, _ := strings.Cut(stmt, " ")
		c, candidates := lookupCommand(verb)
		switch {
		case c.run != nil:
			c.run(s, strings.TrimSpace(args))
		case len(candidates) > 1:
			s.AddError(fmt.Sprintf("Ambiguous command: %s (%s)", verb, strings.Join(candidates, ", ")))
		default:
			s.AddError("Unknown command: " + stmt)
		}
	}
}

// lookupCommand resolves verb case-insensitively: an exact name first,
// then a unique prefix. Otherwise it returns the names verb prefixes.
func lookupCommand(verb string) (command, []string) {
	verb = strings.ToLower(verb)
	var matches []command
	for _, c := range commands {
		if c.name == verb {
			return c, nil
		}
		if strings.HasPrefix(c.name, verb) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.name
	}
	return command{}, names
}

// Complete returns the verbs the last statement of input could complete
// to. Prefix matches win; without any, names are ranked by fuzzy match.
func Complete(input string) []string {
	stmt := input
	if i := strings.LastIndex(input, ";"); i >= 0 {
		stmt = input[i+1:]
	}
	stmt = strings.ToLower(strings.TrimLeft(stmt, " "))
	if strings.Contains(stmt, " ") {
		return nil
	}
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c.name, stmt) {
			out = append(out, c.name)
		}
	}
	if len(out) != 0 || stmt == "" {
		return out
	}
	for _, m := range fuzzy.Find(stmt, CommandNames()) {
		out = append(out, m.Str)
	}
	return out
}

// CompleteLine completes the last statement of input when exactly one verb
// fits, returning the line unchanged otherwise.
func CompleteLine(input string) string {
	c := Complete(input)
	if len(c) != 1 {
		return input
	}
	head := ""
	if i := strings.LastIndex(input, ";"); i >= 0 {
		head = input[:i+1] + " "
	}
	return head + c[0] + " "
}

func (s *State) toggleOverlay(o action.Overlay) {
	if s.overlay == o {
		s.SetOverlay(action.OverlayNone, "")
		return
	}
	s.SetOverlay(o, "")
}

func (s *State) setConfig(path string, v any) {
	t := config.Tree{}
	t.Set(path, v)
	if err := s.ApplyConfig(t); err != nil {
		s.AddError(err.Error())
	}
}

// argument unquotes the arguments of verb and joins them with single
// spaces, so both `cd "My Docs"` and `cd My Docs` name the same directory.
func (s *State) argument(verb, args string) (string, bool) {
	words, err := argv.Split(args)
	if err != nil {
		s.AddError(fmt.Sprintf("%s: %v", verb, err))
		return "", false
	}
	return strings.Join(words, " "), true
}

func (s *State) cmdSort(args string) {
	if args == "" {
		s.AddError("sort: expected one of " + strings.Join(config.SortKeys, "|"))
		return
	}
	s.setConfig("ui.sort", strings.ToLower(args))
}

func (s *State) cmdShow(args string) {
	if args == "" {
		s.AddError("show: expected one of " + strings.Join(config.InfoFields, "|"))
		return
	}
	s.setConfig("ui.show", strings.ToLower(args))
}

func (s *State) cmdDisplay(args string) {
	if args == "" {
		s.AddError("display: expected one of " + strings.Join(config.DisplayModes, "|"))
		return
	}
	t := config.Tree{}
	t.Set("ui.display_mode", strings.ToLower(args))
	if s.cfg().UI.Show == "none" {
		t.Set("ui.show", "modified")
	}
	if err := s.ApplyConfig(t); err != nil {
		s.AddError(err.Error())
	}
}

func (s *State) cmdCd(args string) {
	dir, ok := s.argument("cd", args)
	if !ok {
		return
	}
	switch {
	case dir == "":
		home, err := os.UserHomeDir()
		if err != nil {
			s.AddError(fmt.Sprintf("cd: %v", err))
			return
		}
		dir = home
	case dir == "~" || strings.HasPrefix(dir, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			s.AddError(fmt.Sprintf("cd: %v", err))
			return
		}
		dir = filepath.Join(home, dir[1:])
	case !filepath.IsAbs(dir):
		dir = filepath.Join(s.cwd, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.AddError("cd: not a directory: " + dir)
		return
	}
	if err := s.setCwd(dir, ""); err != nil {
		s.AddError(fmt.Sprintf("cd: %v", err))
	}
}

func markKey(verb, args string) (rune, error) {
	r, size := utf8.DecodeRuneInString(args)
	if args == "" || size != len(args) {
		return 0, fmt.Errorf("%s: expected a single character", verb)
	}
	return r, nil
}

func (s *State) cmdMark(args string) {
	r, err := markKey("mark", args)
	if err != nil {
		s.AddError(err.Error())
		return
	}
	s.setMark(r)
}

func (s *State) cmdGoto(args string) {
	r, err := markKey("goto", args)
	if err != nil {
		s.AddError(err.Error())
		return
	}
	s.gotoMark(r)
}

func (s *State) cmdDelmark(args string) {
	words, ok := s.argument("delmark", args)
	if !ok {
		return
	}
	keys := strings.ReplaceAll(words, " ", "")
	if keys == "" {
		s.AddError("delmark: expected mark keys")
		return
	}
	n := 0
	for _, r := range keys {
		if err := s.marks.Delete(r); err == nil {
			n++
		}
	}
	s.AddMessage(fmt.Sprintf("Deleted %d mark(s)", n))
}

func (s *State) cmdFind(args string) {
	if args == "" {
		s.SetOverlay(action.OverlayPrompt, promptFind)
		return
	}
	s.search(args)
}

// cmdReload adopts freshly loaded configuration and bindings. Settings
// changed since startup return to what the documents say.
func (s *State) cmdReload(string) {
	if s.reload == nil {
		s.AddError("reload: no configuration loader")
		return
	}
	store, keys, err := s.reload()
	if err != nil {
		s.AddError(fmt.Sprintf("reload: %v", err))
	}
	if store == nil || keys == nil {
		return
	}
	s.Reconfigure(store, keys)
	if err == nil {
		s.AddMessage(fmt.Sprintf("Reloaded configuration: %d key bindings", keys.Len()))
	}
}

func (s *State) cmdTheme(args string) {
	if args == "" {
		s.SetOverlay(action.OverlayThemePicker, "")
		return
	}
	if err := s.setTheme(args); err != nil {
		s.AddError(err.Error())
	}
}

func (s *State) cmdAdd(args string) {
	if args == "" {
		s.SetOverlay(action.OverlayPrompt, promptAdd)
		return
	}
	if name, ok := s.argument("add", args); ok {
		s.addEntry(name)
	}
}

func (s *State) cmdRename(args string) {
	if args == "" {
		s.SetOverlay(action.OverlayPrompt, promptRename)
		return
	}
	e, ok := s.Current()
	if !ok {
		s.AddMessage("Rename: no selection")
		return
	}
	if name, ok := s.argument("rename", args); ok {
		s.renameEntry(e.Path, name)
	}
}

func (s *State) cmdSelect(args string) {
	if args == "" {
		s.AddError("select: expected a glob pattern")
		return
	}
	g, err := glob.Compile(args)
	if err != nil {
		s.AddError(fmt.Sprintf("select: %v", err))
		return
	}
	s.selectWhere(func(e listing.Entry) bool { return g.Match(e.Name) })
}

// whereEnv is the environment of a where expression.
type whereEnv struct {
	Name   string  `expr:"name"`
	Path   string  `expr:"path"`
	Ext    string  `expr:"ext"`
	Size   int64   `expr:"size"`
	Dir    bool    `expr:"dir"`
	Link   bool    `expr:"link"`
	Hidden bool    `expr:"hidden"`
	Exec   bool    `expr:"exec"`
	Mode   string  `expr:"mode"`
	Age    float64 `expr:"age"`
}

func (s *State) cmdWhere(args string) {
	if args == "" {
		s.AddError("where: expected an expression")
		return
	}
	program, err := expr.Compile(args, expr.Env(whereEnv{}), expr.AsBool())
	if err != nil {
		s.AddError(fmt.Sprintf("where: %v", err))
		return
	}
	now := time.Now()
	var failed error
	s.selectWhere(func(e listing.Entry) bool {
		out, err := expr.Run(program, whereEnv{
			Name:   e.Name,
			Path:   e.Path,
			Ext:    e.Extension(),
			Size:   e.Size,
			Dir:    e.IsDir,
			Link:   e.IsLink,
			Hidden: e.Hidden(),
			Exec:   e.Executable(),
			Mode:   listing.Permissions(e.Mode),
			Age:    now.Sub(e.ModTime).Seconds(),
		})
		if err != nil {
			failed = err
			return false
		}
		ok, _ := out.(bool)
		return ok
	})
	if failed != nil {
		s.AddError(fmt.Sprintf("where: %v", failed))
	}
}

func (s *State) selectWhere(match func(listing.Entry) bool) {
	n := 0
	for _, e := range s.entries {
		if match(e) {
			s.selected[e.Path] = true
			n++
		}
	}
	s.AddMessage(fmt.Sprintf("Selected %d item(s)", n))
}

// CommandHelp returns one usage line per command.
func CommandHelp() []string {
	out := make([]string, len(commands))
	for i, c := range commands {
		out[i] = c.help
	}
	return out
}
