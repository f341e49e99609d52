// Package procexec runs external commands on behalf of handlers and
// previewers, either captured or with the terminal handed to the child.
package procexec

import (
	"strconv"
	"strings"
)

// Vars is the placeholder vocabulary of one invocation.
type Vars struct {
	Path      string
	Directory string
	Name      string
	Extension string
	Width     int
	Height    int
	// X and Y are the preview pane origin.
	X int
	Y int
}

func (v Vars) pairs() [][2]string {
	return [][2]string{
		{"path", v.Path},
		{"directory", v.Directory},
		{"name", v.Name},
		{"extension", v.Extension},
		{"width", strconv.Itoa(v.Width)},
		{"height", strconv.Itoa(v.Height)},
		{"preview_x", strconv.Itoa(v.X)},
		{"preview_y", strconv.Itoa(v.Y)},
	}
}

// Expand substitutes {path}, {directory}, {name}, {extension}, {width},
// {height}, {preview_x} and {preview_y}. Values are inserted verbatim and
// are never re-expanded; unknown placeholders are left as they are.
func (v Vars) Expand(cmd string) string {
	pairs := v.pairs()
	oldnew := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		oldnew = append(oldnew, "{"+p[0]+"}", p[1])
	}
	return strings.NewReplacer(oldnew...).Replace(cmd)
}

// Env returns the LSJ_* variables matching the placeholders.
func (v Vars) Env() []string {
	pairs := v.pairs()
	env := make([]string, 0, len(pairs))
	for _, p := range pairs {
		env = append(env, "LSJ_"+strings.ToUpper(p[0])+"="+p[1])
	}
	return env
}

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
