package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// colorNames maps theme color names onto ANSI palette indexes.
var colorNames = map[string]string{
	"black":          "0",
	"red":            "1",
	"green":          "2",
	"yellow":         "3",
	"blue":           "4",
	"magenta":        "5",
	"cyan":           "6",
	"white":          "7",
	"gray":           "8",
	"grey":           "8",
	"bright_black":   "8",
	"bright_red":     "9",
	"bright_green":   "10",
	"bright_yellow":  "11",
	"bright_blue":    "12",
	"bright_magenta": "13",
	"bright_cyan":    "14",
	"bright_white":   "15",
}

// themeColor resolves a theme value: a color name, a palette index or a
// "#rrggbb" string. Empty and "default" leave the terminal color alone.
func themeColor(v string) lipgloss.TerminalColor {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "default", "none":
		return lipgloss.NoColor{}
	}
	if idx, ok := colorNames[strings.ReplaceAll(v, "-", "_")]; ok {
		return lipgloss.Color(idx)
	}
	return lipgloss.Color(v)
}

// styles is the theme resolved into lipgloss styles.
type styles struct {
	dir, exec, marked, selected, clip lipgloss.Style
	border, title, info, errText      lipgloss.Style
	overlay, whichKey                 lipgloss.Style
}

func newStyles(theme map[string]string) styles {
	fg := func(key string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(themeColor(theme[key]))
	}
	return styles{
		dir:      fg("dir_fg").Bold(true),
		exec:     fg("exec_fg"),
		marked:   fg("marked_fg").Bold(true),
		selected: fg("selected_fg").Background(themeColor(theme["selected_bg"])),
		clip:     fg("marked_fg").Italic(true),
		border:   fg("border_fg"),
		title:    fg("title_fg").Bold(true),
		info:     fg("info_fg"),
		errText:  fg("error_fg"),
		overlay: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(themeColor(theme["overlay_border"])).
			Padding(0, 1),
		whichKey: fg("which_key_key_fg"),
	}
}
