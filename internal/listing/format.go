package listing

import (
	"io/fs"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ncruces/go-strftime"
)

// Display modes.
const (
	Absolute = "absolute"
	Friendly = "friendly"
)

// Formatter renders entry attributes for rows and headers.
type Formatter struct {
	// Mode is Absolute or Friendly.
	Mode string
	// DateFormat is a strftime layout used in absolute mode.
	DateFormat string
	// Now is the reference time for relative output. Defaults to time.Now.
	Now func() time.Time
}

func (f Formatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Size renders a byte count.
func (f Formatter) Size(n int64) string {
	if f.Mode == Friendly {
		return humanize.IBytes(uint64(max(n, 0)))
	}
	return strconv.FormatInt(n, 10) + " B"
}

// Time renders a timestamp. Zero times render as "-".
func (f Formatter) Time(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if f.Mode == Friendly {
		return humanize.RelTime(t, f.now(), "ago", "from now")
	}
	layout := f.DateFormat
	if layout == "" {
		layout = "%Y-%m-%d %H:%M"
	}
	return strftime.Format(layout, t.Local())
}

// Info renders the info column for field (none, size, created or
// modified). Directories have no size.
func (f Formatter) Info(e Entry, field string) string {
	switch field {
	case "size":
		if e.IsDir {
			return ""
		}
		return f.Size(e.Size)
	case "created":
		return f.Time(e.Created)
	case "modified":
		return f.Time(e.ModTime)
	}
	return ""
}

// Permissions renders mode in ls style, including setuid, setgid and
// sticky bits.
func Permissions(mode fs.FileMode) string {
	b := []byte("----------")
	switch {
	case mode.IsDir():
		b[0] = 'd'
	case mode&fs.ModeSymlink != 0:
		b[0] = 'l'
	}
	const rwx = "rwxrwxrwx"
	perm := mode.Perm()
	for i := range 9 {
		if perm&(1<<uint(8-i)) != 0 {
			b[i+1] = rwx[i]
		}
	}
	special := func(idx int, set bool, lower, upper byte) {
		if !set {
			return
		}
		if b[idx] == 'x' {
			b[idx] = lower
		} else {
			b[idx] = upper
		}
	}
	special(3, mode&fs.ModeSetuid != 0, 's', 'S')
	special(6, mode&fs.ModeSetgid != 0, 's', 'S')
	special(9, mode&fs.ModeSticky != 0, 't', 'T')
	return string(b)
}
