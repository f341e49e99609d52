package keymap

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// WhichKeyLines lays candidates out in columns no wider than width cells.
// Groups that are not complete bindings are shown as "+N".
func WhichKeyLines(prefix []string, cands []Candidate, width int) []string {
	if len(cands) == 0 {
		return nil
	}
	cells := make([]string, len(cands))
	colWidth := 0
	for i, c := range cands {
		label := c.Description
		switch {
		case !c.Complete:
			label = fmt.Sprintf("+%d", c.Count)
		case c.Count > 1:
			label = fmt.Sprintf("%s (+%d)", label, c.Count-1)
		}
		cells[i] = fmt.Sprintf("%s  %s", displayToken(c.Token), label)
		if w := uniseg.StringWidth(cells[i]); w > colWidth {
			colWidth = w
		}
	}
	colWidth += 3
	cols := 1
	if width > colWidth {
		cols = width / colWidth
	}

	lines := []string{"keys: " + Format(prefix)}
	var b strings.Builder
	for i, cell := range cells {
		b.WriteString(cell)
		if (i+1)%cols == 0 || i == len(cells)-1 {
			lines = append(lines, strings.TrimRight(b.String(), " "))
			b.Reset()
			continue
		}
		b.WriteString(strings.Repeat(" ", colWidth-uniseg.StringWidth(cell)))
	}
	return lines
}

func displayToken(tok string) string {
	if tok == " " {
		return "<Space>"
	}
	return tok
}
