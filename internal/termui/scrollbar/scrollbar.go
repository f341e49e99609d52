// Package scrollbar renders a one-column scroll indicator for a list
// window.
package scrollbar

import (
	"github.com/charmbracelet/lipgloss"
)

// Bar describes a window of Visible rows starting at Offset over Total rows.
type Bar struct {
	Total   int
	Visible int
	Offset  int

	Thumb      lipgloss.Style
	Track      lipgloss.Style
	ThumbGlyph string
	TrackGlyph string
}

// New returns a bar drawn with "┃" over a "│" track.
func New(total, visible, offset int) Bar {
	return Bar{
		Total:      total,
		Visible:    visible,
		Offset:     offset,
		Thumb:      lipgloss.NewStyle(),
		Track:      lipgloss.NewStyle(),
		ThumbGlyph: "┃",
		TrackGlyph: "│",
	}
}

// Span returns the first row of the thumb and its height, both within
// [0, Visible). Content that fits in the window has no thumb.
func (b Bar) Span() (top, height int) {
	if b.Visible <= 0 || b.Total <= b.Visible {
		return 0, 0
	}
	height = max(b.Visible*b.Visible/b.Total, 1)
	maxOffset := b.Total - b.Visible
	offset := max(min(b.Offset, maxOffset), 0)
	top = offset * (b.Visible - height) / maxOffset
	return top, height
}

// Lines renders one cell per visible row.
func (b Bar) Lines() []string {
	if b.Visible <= 0 {
		return nil
	}
	top, height := b.Span()
	thumb := b.Thumb.Render(b.ThumbGlyph)
	track := b.Track.Render(b.TrackGlyph)
	out := make([]string, b.Visible)
	for i := range out {
		if i >= top && i < top+height {
			out[i] = thumb
		} else {
			out[i] = track
		}
	}
	return out
}
