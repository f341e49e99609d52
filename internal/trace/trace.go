// Package trace is the optional diagnostics log. It is enabled by the
// LSJ_TRACE environment variable and written to LSJ_TRACE_FILE, or
// lsj-trace.log in the temporary directory. Nothing reads it back.
package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	EnvEnable = "LSJ_TRACE"
	EnvFile   = "LSJ_TRACE_FILE"
)

type invocationKey struct{}

// WithInvocation tags ctx with a fresh invocation id. Records logged with
// the returned context carry it as the "invocation" attribute.
func WithInvocation(ctx context.Context) context.Context {
	return context.WithValue(ctx, invocationKey{}, uuid.NewString())
}

// Invocation returns the id stored by WithInvocation.
func Invocation(ctx context.Context) string {
	id, _ := ctx.Value(invocationKey{}).(string)
	return id
}

// Enabled reports whether the environment asks for tracing.
func Enabled() bool {
	v := os.Getenv(EnvEnable)
	return v != "" && v != "0"
}

// Path returns the trace file location.
func Path() string {
	if p := os.Getenv(EnvFile); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), "lsj-trace.log")
}

// Open returns the trace logger and a closer. When tracing is disabled the
// logger discards everything.
func Open() (*slog.Logger, io.Closer, error) {
	if !Enabled() {
		return Discard(), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Discard(), io.NopCloser(nil), fmt.Errorf("failed to open trace file: %w", err)
	}
	return New(f), f, nil
}

// New returns a trace logger writing text records to w.
func New(w io.Writer) *slog.Logger {
	return slog.New(&handler{Handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type handler struct {
	slog.Handler
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if id := Invocation(ctx); id != "" {
		r.AddAttrs(slog.String("invocation", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{Handler: h.Handler.WithGroup(name)}
}
