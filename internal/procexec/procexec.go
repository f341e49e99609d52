package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrSpawn wraps failures to start a child process.
var ErrSpawn = errors.New("failed to start command")

// Terminal is the exclusive owner of the terminal device. Release hands the
// device back to a normal (cooked, primary screen) state; Acquire takes it
// back.
type Terminal interface {
	Release() error
	Acquire() error
}

// Result describes one finished invocation.
type Result struct {
	Command  string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// Err is set when the command could not be started or waited on; a
	// non-zero exit alone is not an error.
	Err      error
	Duration time.Duration
}

// Output is stdout followed by stderr, with carriage returns removed.
func (r Result) Output() string {
	var b strings.Builder
	b.Write(r.Stdout)
	if len(r.Stderr) != 0 {
		if b.Len() != 0 && !bytes.HasSuffix(r.Stdout, []byte("\n")) {
			b.WriteByte('\n')
		}
		b.Write(r.Stderr)
	}
	return strings.ReplaceAll(b.String(), "\r", "")
}

// Failed reports a spawn failure or a non-zero exit.
func (r Result) Failed() bool { return r.Err != nil || r.ExitCode != 0 }

// Message is the user-facing description of a failed invocation.
func (r Result) Message(interactive bool) string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("$ %s: %v", r.Command, r.Err)
	case interactive:
		return fmt.Sprintf("<interactive exit %d> $ %s", r.ExitCode, r.Command)
	default:
		return fmt.Sprintf("<exit %d> $ %s", r.ExitCode, r.Command)
	}
}

// Orchestrator runs commands through the platform shell. Calls block until
// the child exits.
type Orchestrator struct {
	// Shell is the argv prefix the command string is appended to.
	Shell []string
	// Terminal is released around interactive runs; nil skips that step.
	Terminal Terminal
	// Trace receives one record per invocation.
	Trace *slog.Logger
	// Stdin, Stdout and Stderr are inherited by interactive children.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Env is the base environment; nil means os.Environ().
	Env []string
}

// New returns an orchestrator using the platform shell and the process's
// standard streams.
func New(terminal Terminal, trace *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Shell:    DefaultShell(),
		Terminal: terminal,
		Trace:    trace,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// DefaultShell returns "sh -c" or, on Windows, "cmd /C".
func DefaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"sh", "-c"}
}

// Captured runs cmd with placeholders expanded and collects its output.
func (o *Orchestrator) Captured(ctx context.Context, cmd string, vars Vars, dir string, env ...string) Result {
	var stdout, stderr bytes.Buffer
	c := o.command(ctx, cmd, vars, dir, env)
	c.Stdout = &stdout
	c.Stderr = &stderr
	res := o.run(c, vars.Expand(cmd))
	res.Stdout, res.Stderr = stdout.Bytes(), stderr.Bytes()
	o.trace(ctx, "captured", res)
	return res
}

// Interactive releases the terminal, runs cmd attached to it, and then
// re-acquires the terminal whatever the outcome. Callers must treat the
// screen as invalidated afterwards.
func (o *Orchestrator) Interactive(ctx context.Context, cmd string, vars Vars, dir string) Result {
	expanded := vars.Expand(cmd)
	if o.Terminal != nil {
		if err := o.Terminal.Release(); err != nil {
			res := Result{Command: expanded, ExitCode: -1, Err: fmt.Errorf("failed to release terminal: %w", err)}
			o.trace(ctx, "interactive", res)
			return res
		}
	}
	c := o.command(ctx, cmd, vars, dir, nil)
	c.Stdin, c.Stdout, c.Stderr = o.Stdin, o.Stdout, o.Stderr
	res := o.run(c, expanded)
	if o.Terminal != nil {
		if err := o.Terminal.Acquire(); err != nil {
			res.Err = errors.Join(res.Err, fmt.Errorf("failed to reacquire terminal: %w", err))
		}
	}
	o.trace(ctx, "interactive", res)
	return res
}

func (o *Orchestrator) command(ctx context.Context, cmd string, vars Vars, dir string, extra []string) *exec.Cmd {
	shell := o.Shell
	if len(shell) == 0 {
		shell = DefaultShell()
	}
	args := append(append([]string(nil), shell[1:]...), vars.Expand(cmd))
	c := exec.CommandContext(ctx, shell[0], args...)
	c.Dir = dir
	base := o.Env
	if base == nil {
		base = os.Environ()
	}
	c.Env = append(append(append([]string(nil), base...), vars.Env()...), extra...)
	return c
}

func (o *Orchestrator) run(c *exec.Cmd, expanded string) Result {
	start := time.Now()
	err := c.Run()
	res := Result{Command: expanded, Duration: time.Since(start)}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Err = fmt.Errorf("%w: %w", ErrSpawn, err)
		}
	}
	return res
}

func (o *Orchestrator) trace(ctx context.Context, mode string, res Result) {
	if o.Trace == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("mode", mode),
		slog.String("cmd", res.Command),
		slog.Int("exit", res.ExitCode),
		slog.Int("stdout_bytes", len(res.Stdout)),
		slog.Int("stderr_bytes", len(res.Stderr)),
		slog.Duration("elapsed", res.Duration),
	}
	if res.Err != nil {
		attrs = append(attrs, slog.String("error", res.Err.Error()))
	}
	o.Trace.LogAttrs(ctx, slog.LevelInfo, "process", attrs...)
}

// ProgramTerminal adapts a program that can release and restore the
// terminal it renders to, such as a bubbletea program.
type ProgramTerminal struct {
	Program interface {
		ReleaseTerminal() error
		RestoreTerminal() error
	}
}

func (t ProgramTerminal) Release() error { return t.Program.ReleaseTerminal() }
func (t ProgramTerminal) Acquire() error { return t.Program.RestoreTerminal() }
