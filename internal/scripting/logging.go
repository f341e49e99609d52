package scripting

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// MessageLog is the user-visible message history. It is an slog handler
// backed by a bounded ring of entries, shown by the messages overlay, and
// doubles as the console printer for scripts.
type MessageLog struct {
	logger *slog.Logger
	store  *messageStore
}

// LogEntry is one message.
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
}

// String formats the entry for display.
func (e LogEntry) String() string {
	var b strings.Builder
	switch {
	case e.Level >= slog.LevelError:
		b.WriteString("error: ")
	case e.Level >= slog.LevelWarn:
		b.WriteString("warning: ")
	}
	b.WriteString(e.Message)
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
	}
	return b.String()
}

type messageStore struct {
	mu      sync.RWMutex
	entries []LogEntry
	maxSize int
	seq     uint64
}

// NewMessageLog returns a log keeping at most maxEntries messages.
func NewMessageLog(maxEntries int) *MessageLog {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	store := &messageStore{maxSize: maxEntries}
	return &MessageLog{
		logger: slog.New(&messageHandler{store: store}),
		store:  store,
	}
}

// Logger returns the logger writing to l.
func (l *MessageLog) Logger() *slog.Logger { return l.logger }

// Entries returns a copy of every entry, oldest first.
func (l *MessageLog) Entries() []LogEntry {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return slices.Clone(l.store.entries)
}

// Recent returns the most recent count entries.
func (l *MessageLog) Recent(count int) []LogEntry {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	if count <= 0 || count > len(l.store.entries) {
		count = len(l.store.entries)
	}
	return slices.Clone(l.store.entries[len(l.store.entries)-count:])
}

// Lines formats every entry for display.
func (l *MessageLog) Lines() []string {
	entries := l.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}

// Len returns the number of entries held.
func (l *MessageLog) Len() int {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return len(l.store.entries)
}

// Seq increases with every entry logged, so callers can notice new
// messages without diffing.
func (l *MessageLog) Seq() uint64 {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return l.store.seq
}

// Clear drops every entry.
func (l *MessageLog) Clear() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.entries = l.store.entries[:0]
}

// Log implements the console printer.
func (l *MessageLog) Log(s string) { l.logger.Info(s) }

// Warn implements the console printer.
func (l *MessageLog) Warn(s string) { l.logger.Warn(s) }

// Error implements the console printer.
func (l *MessageLog) Error(s string) { l.logger.Error(s) }

type messageHandler struct {
	store *messageStore
	attrs []slog.Attr
	group string
}

func (h *messageHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *messageHandler) Handle(_ context.Context, record slog.Record) error {
	entry := LogEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   slices.Clone(h.attrs),
	}
	record.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		entry.Attrs = append(entry.Attrs, a)
		return true
	})

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.entries = append(h.store.entries, entry)
	if over := len(h.store.entries) - h.store.maxSize; over > 0 {
		h.store.entries = slices.Delete(h.store.entries, 0, over)
	}
	h.store.seq++
	return nil
}

func (h *messageHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &messageHandler{store: h.store, group: h.group, attrs: slices.Clone(h.attrs)}
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		out.attrs = append(out.attrs, a)
	}
	return out
}

func (h *messageHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &messageHandler{store: h.store, attrs: h.attrs, group: group}
}
