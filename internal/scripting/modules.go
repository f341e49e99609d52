package scripting

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dop251/goja_nodejs/require"
)

// moduleLoader is the require source loader. It serves files below dir and
// nothing else.
type moduleLoader struct {
	dir string
}

func (l moduleLoader) load(path string) ([]byte, error) {
	// require probes node_modules folders up the tree before the global
	// folder; those probes must miss quietly.
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "node_modules") {
		return nil, require.ModuleFileDoesNotExistError
	}
	if l.dir == "" {
		return nil, fmt.Errorf("%w: %s", ErrModuleOutsideRoot, path)
	}
	root, err := filepath.Abs(l.dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}
	if !within(root, abs) {
		return nil, fmt.Errorf("%w: %s", ErrModuleOutsideRoot, path)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, require.ModuleFileDoesNotExistError
		}
		return nil, err
	}
	if realRoot, err := filepath.EvalSymlinks(root); err == nil && !within(realRoot, resolved) {
		return nil, fmt.Errorf("%w: %s", ErrModuleOutsideRoot, path)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, require.ModuleFileDoesNotExistError
	}
	if info.IsDir() {
		return nil, require.ModuleFileDoesNotExistError
	}
	return os.ReadFile(resolved)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
