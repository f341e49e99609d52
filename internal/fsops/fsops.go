// Package fsops implements the file operations behind paste, add, rename
// and delete. Batch operations never stop at the first failure; they report
// a Summary.
package fsops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrExists      = errors.New("destination exists")
	ErrInvalidName = errors.New("invalid name")
)

// Copy copies src to dst recursively. Symlinks are recreated, not followed.
func Copy(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	case info.IsDir():
		return copyDir(src, dst, info.Mode().Perm())
	default:
		return copyFile(src, dst, info.Mode().Perm())
	}
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func copyDir(src, dst string, perm fs.FileMode) error {
	if err := os.Mkdir(dst, perm|0o700); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := Copy(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	if perm&0o700 != 0o700 {
		return os.Chmod(dst, perm)
	}
	return nil
}

// Move renames src to dst. When the two are on different devices it falls
// back to copying and then removing the source.
func Move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := Copy(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return fmt.Errorf("cross-device move: %w", err)
	}
	return os.RemoveAll(src)
}

// Remove deletes path, recursively for directories. A missing path is an
// error.
func Remove(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// Inside reports whether path is dir or below it.
func Inside(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ValidateName checks a single path element typed by the user.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidName)
	}
	return nil
}

// Create makes a new entry in dir. A name ending in "/" creates a
// directory (and any missing parents); anything else an empty file.
func Create(dir, name string) (string, error) {
	isDir := strings.HasSuffix(name, "/")
	clean := strings.TrimSuffix(name, "/")
	for _, part := range strings.Split(clean, "/") {
		if err := ValidateName(part); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, filepath.FromSlash(clean))
	if !Inside(dir, path) || path == filepath.Clean(dir) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := os.Lstat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, path)
	}
	if isDir {
		return path, os.MkdirAll(path, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	return path, f.Close()
}

// Rename gives path a new base name within the same directory.
func Rename(path, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if strings.ContainsAny(name, `/`+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	dst := filepath.Join(filepath.Dir(path), name)
	if dst == path {
		return dst, nil
	}
	// a case-only rename on a case-insensitive filesystem sees itself
	if _, err := os.Lstat(dst); err == nil && !strings.EqualFold(dst, path) {
		return "", fmt.Errorf("%w: %s", ErrExists, dst)
	}
	return dst, os.Rename(path, dst)
}
