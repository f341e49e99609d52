package action

import (
	"github.com/joeycumines/lsj/internal/config"
)

// Target is the host state effects are applied to.
type Target interface {
	Overlay() Overlay
	// SetOverlay makes o the only active overlay; OverlayNone closes it.
	SetOverlay(o Overlay, arg string)
	ApplyConfig(overlay config.Tree) error
	RunOp(op Internal)
	SetOutput(title, text string)
	AddMessage(text string)
	AddError(text string)
	ItemCount() int
	SetSelection(index int)
	RequestRedraw(full bool)
	Quit()
}

// Apply applies e to t in a fixed order: overlay directives, configuration
// mutations, host operations, output and message text, selection, redraw,
// and quit last so a handler can change state and then quit.
func Apply(t Target, e Effects) {
	for _, d := range e.Overlays {
		applyOverlay(t, d)
	}

	if len(e.Config) != 0 {
		if err := t.ApplyConfig(e.Config); err != nil {
			t.AddError(err.Error())
		}
	}

	for _, op := range e.Ops {
		t.RunOp(op)
	}

	if e.Output != nil {
		t.SetOutput(e.Output.Title, e.Output.Text)
	}
	for _, m := range e.Messages {
		t.AddMessage(m)
	}
	for _, m := range e.Errors {
		t.AddError(m)
	}

	switch {
	case e.SelectLast:
		t.SetSelection(max(t.ItemCount()-1, 0))
	case e.Selection != nil:
		t.SetSelection(clamp(*e.Selection, t.ItemCount()))
	}

	switch e.Redraw {
	case RedrawFull:
		t.RequestRedraw(true)
	case RedrawPartial:
		t.RequestRedraw(false)
	}

	if e.Quit {
		t.Quit()
	}
}

func applyOverlay(t Target, d OverlayDirective) {
	cur := t.Overlay()
	switch d.Mode {
	case Show:
		t.SetOverlay(d.Overlay, d.Arg)
	case Hide:
		if cur == d.Overlay {
			t.SetOverlay(OverlayNone, "")
		}
	case Toggle:
		if cur == d.Overlay {
			t.SetOverlay(OverlayNone, "")
		} else {
			t.SetOverlay(d.Overlay, d.Arg)
		}
	}
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
