package fsops

import (
	"fmt"
	"os"
	"path/filepath"
)

// Summary tallies a batch operation.
type Summary struct {
	Verb    string
	OK      int
	Skipped int
	Errors  int
	// Details holds one line per skipped or failed item.
	Details []string
	// Moved maps each moved source to its new path.
	Moved map[string]string
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: ok=%d skipped=%d errors=%d", s.Verb, s.OK, s.Skipped, s.Errors)
}

func (s *Summary) skip(format string, args ...any) {
	s.Skipped++
	s.Details = append(s.Details, fmt.Sprintf(format, args...))
}

func (s *Summary) fail(src, dst string, err error) {
	s.Errors++
	if dst == "" {
		s.Details = append(s.Details, fmt.Sprintf("Error: %s: %v", src, err))
		return
	}
	s.Details = append(s.Details, fmt.Sprintf("Error: %s -> %s: %v", src, dst, err))
}

// Paste copies or moves items into destDir. Items whose destination already
// exists are skipped, as are directories pasted into themselves.
func Paste(items []string, destDir string, move bool) Summary {
	s := Summary{Verb: "Paste"}
	if move {
		s.Moved = make(map[string]string)
	}
	for _, src := range items {
		if Inside(src, destDir) {
			if move {
				s.skip("Skip (move into subdir): %s", src)
			} else {
				s.skip("Skip (copy into itself): %s", src)
			}
			continue
		}
		dst := filepath.Join(destDir, filepath.Base(src))
		if _, err := os.Lstat(dst); err == nil {
			s.skip("Skip (exists): %s", dst)
			continue
		}
		var err error
		if move {
			err = Move(src, dst)
		} else {
			err = Copy(src, dst)
		}
		if err != nil {
			s.fail(src, dst, err)
			continue
		}
		s.OK++
		if move {
			s.Moved[src] = dst
		}
	}
	return s
}

// RemoveAll deletes every item.
func RemoveAll(items []string) Summary {
	s := Summary{Verb: "Delete"}
	for _, p := range items {
		if err := Remove(p); err != nil {
			s.fail(p, "", err)
			continue
		}
		s.OK++
	}
	return s
}
