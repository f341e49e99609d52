// Package preview renders the preview pane for the highlighted file and
// memoises the result per (path, width, height).
package preview

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/golang/groupcache/lru"

	"github.com/joeycumines/lsj/internal/procexec"
)

// sniffSize is how much of a file is inspected to decide whether it is
// binary.
const sniffSize = 4096

// Request is what a previewer is asked about.
type Request struct {
	Path      string
	Directory string
	Name      string
	Extension string
	IsBinary  bool
	Width     int
	Height    int
	X         int
	Y         int
}

// Vars returns the placeholder values for the request.
func (r Request) Vars() procexec.Vars {
	return procexec.Vars{
		Path:      r.Path,
		Directory: r.Directory,
		Name:      r.Name,
		Extension: r.Extension,
		Width:     r.Width,
		Height:    r.Height,
		X:         r.X,
		Y:         r.Y,
	}
}

// CommandSource yields the command that renders a preview. ok is false
// when the built-in display should be used instead.
type CommandSource interface {
	PreviewCommand(ctx context.Context, req Request) (cmd string, ok bool, err error)
}

// Runner runs captured commands.
type Runner interface {
	Captured(ctx context.Context, cmd string, vars procexec.Vars, dir string, env ...string) procexec.Result
}

// Key identifies a cache entry.
type Key struct {
	Path   string
	Width  int
	Height int
}

// Entry is a rendered preview.
type Entry struct {
	Lines []string
	// Command is the expanded command that produced Lines, empty for the
	// built-in display.
	Command string
}

// Options control rendering.
type Options struct {
	// MaxLines bounds the number of lines kept.
	MaxLines int
	// Highlight enables syntax highlighting in the built-in text display.
	Highlight bool
	// CacheSize bounds the number of entries; zero is unbounded.
	CacheSize int
}

// Cache renders previews and remembers them. A changed selection or pane
// size produces a different key, so entries never need invalidating.
type Cache struct {
	Source CommandSource
	Runner Runner
	// Log receives user-visible messages about failed previews.
	Log   *slog.Logger
	Trace *slog.Logger

	opts    Options
	entries *lru.Cache
	hits    int
	misses  int
}

// NewCache returns an empty cache.
func NewCache(source CommandSource, runner Runner, opts Options) *Cache {
	return &Cache{Source: source, Runner: runner, opts: opts, entries: lru.New(opts.CacheSize)}
}

// SetOptions changes rendering options. Existing entries are dropped when
// anything but the size limit changes, since they were rendered under the
// old options.
func (c *Cache) SetOptions(opts Options) {
	if opts.MaxLines != c.opts.MaxLines || opts.Highlight != c.opts.Highlight {
		c.entries.Clear()
	}
	c.entries.MaxEntries = opts.CacheSize
	c.opts = opts
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) { return c.hits, c.misses }

// Clear drops every entry, for when files may have changed on disk.
func (c *Cache) Clear() { c.entries.Clear() }

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Get returns the preview of path for a pane of the given size, whose
// origin is (x, y).
func (c *Cache) Get(ctx context.Context, path string, width, height, x, y int) Entry {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	key := Key{Path: path, Width: width, Height: height}
	if v, ok := c.entries.Get(key); ok {
		c.hits++
		c.tracef(ctx, "preview cache hit", key, v.(Entry))
		return v.(Entry)
	}
	c.misses++

	req := Request{
		Path:      path,
		Directory: filepath.Dir(path),
		Name:      filepath.Base(path),
		Extension: strings.TrimPrefix(filepath.Ext(path), "."),
		IsBinary:  IsBinaryFile(path),
		Width:     width,
		Height:    height,
		X:         x,
		Y:         y,
	}
	entry := c.render(ctx, req)
	c.entries.Add(key, entry)
	c.tracef(ctx, "preview", key, entry)
	return entry
}

func (c *Cache) render(ctx context.Context, req Request) Entry {
	if c.Source != nil && c.Runner != nil {
		cmd, ok, err := c.Source.PreviewCommand(ctx, req)
		switch {
		case err != nil:
			c.log().Error(err.Error(), "path", req.Path)
		case ok && strings.TrimSpace(cmd) != "":
			res := c.Runner.Captured(ctx, cmd, req.Vars(), req.Directory, "FORCE_COLOR=1", "CLICOLOR_FORCE=1")
			if res.Failed() {
				c.log().Warn(res.Message(false))
			}
			return Entry{Lines: c.clip(res.Output(), req.Width), Command: res.Command}
		}
	}
	return Entry{Lines: c.builtin(req)}
}

func (c *Cache) clip(text string, width int) []string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}
	if c.opts.MaxLines > 0 && len(lines) > c.opts.MaxLines {
		lines = lines[:c.opts.MaxLines]
	}
	for i, l := range lines {
		l = strings.ReplaceAll(strings.TrimSuffix(l, "\r"), "\t", "    ")
		if width > 0 {
			l = ansi.Truncate(l, width, "")
		}
		lines[i] = l
	}
	return lines
}

func (c *Cache) tracef(ctx context.Context, msg string, key Key, e Entry) {
	if c.Trace == nil {
		return
	}
	c.Trace.LogAttrs(ctx, slog.LevelInfo, msg,
		slog.String("path", key.Path),
		slog.Int("width", key.Width),
		slog.Int("height", key.Height),
		slog.String("cmd", e.Command),
		slog.Int("lines", len(e.Lines)),
		slog.String("digest", digest(e.Lines)),
	)
}

func (c *Cache) log() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

func digest(lines []string) string {
	h := xxhash.New()
	for _, l := range lines {
		_, _ = h.WriteString(l)
		_, _ = h.WriteString("\n")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// IsBinaryFile reports whether the head of the file contains a NUL byte or
// is not valid UTF-8. Unreadable files are not binary.
func IsBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, sniffSize)
	n, _ := io.ReadFull(f, buf)
	return IsBinary(buf[:n], n == sniffSize)
}

// IsBinary classifies a file head. truncated allows an incomplete UTF-8
// sequence at the end of data.
func IsBinary(data []byte, truncated bool) bool {
	for _, b := range data {
		if b == 0 {
			return true
		}
	}
	if utf8.Valid(data) {
		return false
	}
	if truncated {
		for cut := 1; cut < utf8.UTFMax && cut <= len(data); cut++ {
			if utf8.Valid(data[:len(data)-cut]) {
				return false
			}
		}
	}
	return true
}
