package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	// EnvConfigDir overrides the configuration root.
	EnvConfigDir = "LSJ_CONFIG_DIR"
	// EntryFile is the user document loaded from the configuration root.
	EntryFile = "init.js"
	// ModuleDir is the only directory, relative to the root, that require
	// may load modules from.
	ModuleDir = "lib"
	// ThemeDir holds theme files listed by the theme picker.
	ThemeDir = "themes"
	// MarksFile stores persisted marks.
	MarksFile = "marks"
)

// Location is a resolved configuration root.
type Location struct {
	Root  string
	Entry string
}

// ModulePath returns the module directory for this root.
func (l Location) ModulePath() string { return filepath.Join(l.Root, ModuleDir) }

// CandidateDirs returns configuration roots in search order. An explicit
// override (from the command line) comes first, then the environment, then
// the platform defaults.
func CandidateDirs(override string) []string {
	var dirs []string
	if override != "" {
		dirs = append(dirs, override)
	}
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		dirs = append(dirs, dir)
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			dirs = append(dirs, filepath.Join(appData, "lsj"))
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "lsj"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "lsj"))
	}
	return dirs
}

// Discover returns the first candidate root containing an entry document.
// When none exists the returned location has an empty Entry and a Root
// pointing at the preferred candidate, so marks and themes still have a
// home; ok is false in that case.
func Discover(override string) (loc Location, ok bool) {
	dirs := CandidateDirs(override)
	for _, dir := range dirs {
		entry := filepath.Join(dir, EntryFile)
		if info, err := os.Stat(entry); err == nil && info.Mode().IsRegular() {
			root, err := filepath.Abs(dir)
			if err != nil {
				root = dir
			}
			return Location{Root: root, Entry: filepath.Join(root, EntryFile)}, true
		}
	}
	if len(dirs) > 0 {
		loc.Root = dirs[0]
	}
	return loc, false
}
