package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// canvas is a grid of terminal cells. A wide rune occupies its cell and
// leaves "" in the next one, so any column window can be cut out without
// breaking display widths.
type canvas struct {
	w, h  int
	cells [][]string
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]string, h)}
	for y := range c.cells {
		row := make([]string, w)
		for x := range row {
			row[x] = " "
		}
		c.cells[y] = row
	}
	return c
}

// text writes s at (x, y) using at most maxW columns, truncating with an
// ellipsis when it does not fit.
func (c *canvas) text(x, y int, s string, maxW int) {
	if y < 0 || y >= c.h || maxW <= 0 {
		return
	}
	if runewidth.StringWidth(s) > maxW {
		s = runewidth.Truncate(s, maxW, "…")
	}
	end := x + maxW
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if x+rw > end || x+rw > c.w {
			return
		}
		if x >= 0 {
			c.cells[y][x] = string(r)
			if rw == 2 {
				c.cells[y][x+1] = ""
			}
		}
		x += rw
	}
}

// window returns columns [from, from+width) of row y.
func (c *canvas) window(y, from, width int) string {
	if y < 0 || y >= c.h {
		return strings.Repeat(" ", width)
	}
	row := c.cells[y]
	var b strings.Builder
	for x := from; x < from+width; x++ {
		switch {
		case x < 0 || x >= c.w:
			b.WriteByte(' ')
		case row[x] == "":
			// Right half of a wide rune; only visible when cut at the
			// left edge.
			if x == from {
				b.WriteByte(' ')
			}
		case x == from+width-1 && x+1 < c.w && row[x+1] == "":
			// Left half of a wide rune cut at the right edge.
			b.WriteByte(' ')
		default:
			b.WriteString(row[x])
		}
	}
	return b.String()
}
