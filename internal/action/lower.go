package action

import (
	"fmt"
	"strings"

	"github.com/joeycumines/lsj/internal/config"
)

// settingFields are effect fields that name a ui setting. When a handler
// both mutates ui.<name> and sets the top-level field, the field wins.
var settingFields = []string{"sort", "sort_reverse", "show_hidden", "display_mode", "show"}

var effectFields = map[string]bool{
	"quit": true, "redraw": true, "messages": true, "output": true,
	"which_key": true, "theme_picker": true, "prompt": true, "confirm": true,
	"output_text": true, "output_title": true, "message_text": true,
	"error_text": true, "select_last": true, "clipboard": true, "context": true,
	"sort": true, "sort_reverse": true, "show_hidden": true, "display_mode": true, "show": true,
}

// Lower turns a handler's view of the configuration table into Effects.
// before is the table the handler was given; after is what it left behind,
// with any returned table merged in.
func Lower(before, after config.Tree) Effects {
	var e Effects

	for _, o := range []struct {
		key     string
		overlay Overlay
	}{
		{"which_key", OverlayWhichKey},
		{"messages", OverlayMessages},
		{"output", OverlayOutput},
		{"theme_picker", OverlayThemePicker},
	} {
		if v, ok := after[o.key]; ok {
			if mode, ok := parseMode(v); ok {
				e.Overlays = append(e.Overlays, OverlayDirective{Overlay: o.overlay, Mode: mode})
			}
		}
	}
	if s, ok := after["prompt"].(string); ok && s != "" {
		e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayPrompt, Mode: Show, Arg: s})
	}
	if s, ok := after["confirm"].(string); ok && s != "" {
		e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayConfirm, Mode: Show, Arg: s})
	}

	e.Config = config.Diff(StripEffects(before), StripEffects(after))
	for _, name := range settingFields {
		if v, ok := after[name]; ok && v != nil {
			if e.Config == nil {
				e.Config = config.Tree{}
			}
			e.Config.Set("ui."+name, v)
		}
	}
	if len(e.Config) == 0 {
		e.Config = nil
	}

	if v, ok := after["clipboard"].(string); ok && v != "" {
		e.Ops = append(e.Ops, Internal{Name: "clipboard", Arg: v})
	}

	if text, ok := after["output_text"]; ok && text != nil {
		title, _ := after["output_title"].(string)
		if title == "" {
			title = "Output"
		}
		e.Output = &Output{Title: title, Text: stringify(text)}
		if _, explicit := after["output"]; !explicit {
			e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayOutput, Mode: Show})
		}
	}
	e.Messages = append(e.Messages, stringList(after["message_text"])...)
	e.Errors = append(e.Errors, stringList(after["error_text"])...)

	if idx, ok := selectedIndex(after); ok {
		if prev, ok := selectedIndex(before); !ok || prev != idx {
			e.Selection = &idx
		}
	}
	if truthy(after["select_last"]) {
		e.Selection, e.SelectLast = nil, true
	}

	switch v := after["redraw"].(type) {
	case bool:
		if v {
			e.Redraw = RedrawFull
		}
	case string:
		switch strings.ToLower(v) {
		case "full", "true":
			e.Redraw = RedrawFull
		case "partial":
			e.Redraw = RedrawPartial
		}
	}
	e.Quit = truthy(after["quit"])
	return e
}

// StripEffects returns t without its top-level effect fields. Handlers are
// given a stripped snapshot, so an effect field that reached the persistent
// configuration is not read back as a fresh request.
func StripEffects(t config.Tree) config.Tree {
	out := make(config.Tree, len(t))
	for k, v := range t {
		if !effectFields[k] {
			out[k] = v
		}
	}
	return out
}

func parseMode(v any) (Mode, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return Show, true
		}
		return Hide, true
	case string:
		switch strings.ToLower(x) {
		case "show", "open", "on":
			return Show, true
		case "hide", "close", "off":
			return Hide, true
		case "toggle":
			return Toggle, true
		}
	}
	return 0, false
}

func selectedIndex(t config.Tree) (int, bool) {
	ctx, ok := config.AsTree(t["context"])
	if !ok {
		return 0, false
	}
	switch v := config.Normalize(ctx["selected_index"]).(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "false" && x != "0"
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func stringList(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, stringify(item))
		}
		return out
	}
	return []string{stringify(v)}
}

// Effects lowers a built-in action. cfg is the live configuration, used by
// toggles.
func (a Internal) Effects(cfg *config.Config) Effects {
	var e Effects
	set := func(path string, v any) {
		e.Config = config.Tree{}
		e.Config.Set(path, v)
	}
	switch a.Name {
	case "quit":
		e.Quit = true
	case "redraw":
		e.Redraw = RedrawFull
	case "sort":
		if a.Arg == "reverse:toggle" {
			set("ui.sort_reverse", !cfg.UI.SortReverse)
		} else {
			set("ui.sort", a.Arg)
		}
	case "show":
		set("ui.show", a.Arg)
	case "display":
		set("ui.display_mode", a.Arg)
	case "hidden":
		set("ui.show_hidden", !cfg.UI.ShowHidden)
	case "nav":
		switch a.Arg {
		case "top":
			zero := 0
			e.Selection = &zero
		case "bottom":
			e.SelectLast = true
		default:
			e.Ops = append(e.Ops, a)
		}
	case "overlay":
		switch a.Arg {
		case "messages":
			e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayMessages, Mode: Toggle})
		case "output":
			e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayOutput, Mode: Toggle})
		case "which_key":
			e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayWhichKey, Mode: Toggle})
		case "close":
			e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayNone, Mode: Show})
		}
	case "theme":
		e.Overlays = append(e.Overlays, OverlayDirective{Overlay: OverlayThemePicker, Mode: Show})
	default:
		e.Ops = append(e.Ops, a)
	}
	return e
}
