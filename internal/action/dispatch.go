package action

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/trace"
)

// ScriptRunner calls script callbacks.
type ScriptRunner interface {
	CallHandler(ctx context.Context, id int, snapshot config.Tree, actx Context) (Effects, error)
}

// Dispatcher runs handlers and returns their effects. Failures never
// escape: they are logged to Log and the invocation yields no effects.
type Dispatcher struct {
	Scripts ScriptRunner
	// Log receives user-visible messages.
	Log   *slog.Logger
	Trace *slog.Logger
}

// Dispatch runs h. cfg is the live configuration and snapshot its tree.
func (d *Dispatcher) Dispatch(ctx context.Context, h Handler, cfg *config.Config, snapshot config.Tree, actx Context) Effects {
	ctx = trace.WithInvocation(ctx)
	start := time.Now()
	var (
		eff Effects
		err error
	)
	switch h.Kind {
	case KindScript:
		if d.Scripts == nil {
			d.log().Warn("no script runtime for handler", "handler", h.String())
			break
		}
		eff, err = d.Scripts.CallHandler(ctx, h.Script, snapshot, actx)
		if err != nil {
			d.log().Error(err.Error(), "handler", h.String(), "elapsed", time.Since(start).Round(time.Microsecond))
			eff = Effects{}
		}
	case KindInternal:
		for _, a := range h.Actions {
			eff.Merge(a.Effects(cfg))
		}
	default:
		msg := "Unknown action: " + h.Source
		if h.Err != nil {
			msg = h.Err.Error()
		}
		d.log().Warn(msg)
	}
	if d.Trace != nil {
		attrs := []slog.Attr{
			slog.String("handler", h.String()),
			slog.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		d.Trace.LogAttrs(ctx, slog.LevelInfo, "dispatch", attrs...)
	}
	return eff
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}
