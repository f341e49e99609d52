// Package marks persists single-character directory bookmarks as
// "<key>\t<path>" lines.
package marks

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// ErrNoMark is returned by Get for an unset key.
var ErrNoMark = errors.New("no mark")

// Set is a loaded mark table bound to its file. The zero value is an
// empty, unsaved table.
type Set struct {
	path  string
	marks map[rune]string
}

// Load reads path. A missing file yields an empty set. Malformed lines are
// skipped.
func Load(path string) (*Set, error) {
	s := &Set{path: path, marks: make(map[rune]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, p, ok := strings.Cut(line, "\t")
		if !ok || key == "" || p == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(key)
		s.marks[r] = p
	}
	return s, sc.Err()
}

// Get returns the path stored under key.
func (s *Set) Get(key rune) (string, error) {
	p, ok := s.marks[key]
	if !ok {
		return "", fmt.Errorf("%w '%c'", ErrNoMark, key)
	}
	return p, nil
}

// Put stores dir under key and saves the table.
func (s *Set) Put(key rune, dir string) error {
	if s.marks == nil {
		s.marks = make(map[rune]string)
	}
	s.marks[key] = dir
	return s.Save()
}

// Delete removes key and saves the table. Deleting an unset key is an
// error.
func (s *Set) Delete(key rune) error {
	if _, err := s.Get(key); err != nil {
		return err
	}
	delete(s.marks, key)
	return s.Save()
}

// Keys returns the set keys in order.
func (s *Set) Keys() []rune {
	keys := make([]rune, 0, len(s.marks))
	for k := range s.marks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Save writes the table through a temporary file and a rename. A set
// without a path is kept in memory only.
func (s *Set) Save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, k := range s.Keys() {
		fmt.Fprintf(&buf, "%c\t%s\n", k, s.marks[k])
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// String lists the marks one per line, or "<no marks>".
func (s *Set) String() string {
	var sb strings.Builder
	for _, k := range s.Keys() {
		fmt.Fprintf(&sb, "%c  %s\n", k, s.marks[k])
	}
	if sb.Len() == 0 {
		return "<no marks>\n"
	}
	return sb.String()
}
