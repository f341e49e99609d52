// Package listing reads directories into sorted entry slices and formats the
// per-row info column.
package listing

import (
	"cmp"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Entry is one directory entry as shown in a pane.
type Entry struct {
	Name    string
	Path    string
	IsDir   bool
	IsLink  bool
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	Created time.Time
}

// Hidden reports whether the entry is a dotfile.
func (e Entry) Hidden() bool { return strings.HasPrefix(e.Name, ".") }

// Executable reports whether any execute bit is set on a regular file.
func (e Entry) Executable() bool { return !e.IsDir && e.Mode&0o111 != 0 }

// Extension returns the extension without its leading dot.
func (e Entry) Extension() string {
	if e.IsDir {
		return ""
	}
	return strings.TrimPrefix(filepath.Ext(e.Name), ".")
}

// Options controls Read.
type Options struct {
	ShowHidden bool
	// Sort is one of name, size, mtime or created.
	Sort    string
	Reverse bool
	// Max caps the number of entries kept. Zero keeps everything.
	Max int
}

// Read lists dir. Entries whose metadata cannot be read are dropped.
func Read(dir string, opts Options) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		e, ok := stat(filepath.Join(dir, name), name, de)
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	Sort(entries, opts.Sort, opts.Reverse)
	if opts.Max > 0 && len(entries) > opts.Max {
		entries = entries[:opts.Max]
	}
	return entries, nil
}

// Stat builds an Entry for a single path.
func Stat(path string) (Entry, error) {
	lst, err := os.Lstat(path)
	if err != nil {
		return Entry{}, err
	}
	e, _ := stat(path, filepath.Base(path), fs.FileInfoToDirEntry(lst))
	return e, nil
}

func stat(path, name string, de fs.DirEntry) (Entry, bool) {
	e := Entry{Name: name, Path: path, IsLink: de.Type()&fs.ModeSymlink != 0}
	// links report their target, falling back to the link itself when dangling
	info, err := os.Stat(path)
	if err != nil {
		if info, err = de.Info(); err != nil {
			return e, false
		}
	}
	e.IsDir = info.IsDir()
	e.Size = info.Size()
	e.Mode = info.Mode()
	e.ModTime = info.ModTime()
	e.Created = createdTime(path, info)
	return e, true
}

// Sort orders entries in place. Directories always precede files. Under
// size ordering directories keep name order, in either direction.
func Sort(entries []Entry, key string, reverse bool) {
	col := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	byName := func(a, b Entry) int {
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.IsDir && !b.IsDir:
			return -1
		case !a.IsDir && b.IsDir:
			return 1
		}
		var c int
		switch key {
		case "size":
			if a.IsDir && b.IsDir {
				return byName(a, b)
			}
			c = cmp.Compare(a.Size, b.Size)
		case "mtime":
			c = a.ModTime.Compare(b.ModTime)
		case "created":
			c = a.Created.Compare(b.Created)
		default:
			c = byName(a, b)
		}
		if reverse {
			c = -c
		}
		if c == 0 && key != "name" && key != "" {
			c = byName(a, b)
		}
		return c
	})
}
