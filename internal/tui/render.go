package tui

import (
	"fmt"

	"github.com/mattn/go-runewidth"

	"slidecal/internal/views"
)

// grid is the cell geometry of one panel drawn w columns wide and h rows
// tall. Row 0 holds the panel label.
type grid struct {
	w, h       int
	cols, rows int
	colW, rowH int
}

func gridFor(p views.Panel, w, h int) grid {
	g := grid{w: w, h: h, cols: p.Columns}
	if g.cols <= 0 || g.cols > len(p.Cells) {
		g.cols = max(len(p.Cells), 1)
	}
	g.rows = max((len(p.Cells)+g.cols-1)/g.cols, 1)
	g.colW = max(w/g.cols, 1)
	g.rowH = max((h-1)/g.rows, 1)
	return g
}

// bounds returns the x range and top row of cell i, separator excluded.
func (g grid) bounds(i int) (x0, x1, y0 int) {
	col, row := i%g.cols, i/g.cols
	x0 = col * g.colW
	x1 = x0 + g.colW
	if col == g.cols-1 {
		x1 = g.w
	}
	if col > 0 {
		x0++
	}
	return x0, x1, 1 + row*g.rowH
}

// cellAt maps panel-relative coordinates to a cell index.
func (g grid) cellAt(x, y int) (int, bool) {
	if x < 0 || x >= g.w || y < 1 || y >= 1+g.rows*g.rowH {
		return 0, false
	}
	col := min(x/g.colW, g.cols-1)
	row := (y - 1) / g.rowH
	return row*g.cols + col, true
}

// cardBox is where a card sits inside its cell, relative to the cell's
// top-left corner.
type cardBox struct {
	x0, x1 int
	y0, y1 int
}

func (b cardBox) contains(x, y int) bool {
	return x >= b.x0 && x < b.x1 && y >= b.y0 && y < b.y1
}

// cardBoxes lays out a cell's cards below its day header. A "+K more" line
// is reserved at the bottom when events are hidden.
func cardBoxes(l views.Layout, w, h int) []cardBox {
	n := len(l.Cards)
	avail := h - 1
	if l.More > 0 {
		avail--
	}
	if n == 0 || avail <= 0 || w <= 0 {
		return nil
	}

	boxes := make([]cardBox, 0, n)
	if l.Kind == views.Split && l.Split == views.Columns {
		cw := max(w/n, 1)
		for i := 0; i < n; i++ {
			x0 := i * cw
			x1 := x0 + cw
			if i == n-1 {
				x1 = w
			}
			if x0 >= w {
				break
			}
			boxes = append(boxes, cardBox{x0: x0, x1: x1, y0: 1, y1: 1 + avail})
		}
		return boxes
	}

	per := max(avail/n, 1)
	for i := 0; i < n; i++ {
		y0 := 1 + i*per
		if y0 >= 1+avail {
			break
		}
		y1 := y0 + per
		if i == n-1 || y1 > 1+avail {
			y1 = 1 + avail
		}
		boxes = append(boxes, cardBox{x0: 0, x1: w, y0: y0, y1: y1})
	}
	return boxes
}

func dayHeader(c views.Cell) string {
	h := fmt.Sprintf("%s %d", c.Date.Format("Mon"), c.DayNumber)
	switch {
	case c.Today:
		return "» " + h
	case c.Muted():
		return "(" + h + ")"
	}
	return h
}

// drawPanel paints p into cv with its left edge at column ox.
func drawPanel(cv *canvas, p views.Panel, ox, w, h int) {
	label := p.Label
	pad := max((w-runewidth.StringWidth(label))/2, 0)
	cv.text(ox+pad, 0, label, w-pad)

	g := gridFor(p, w, h)
	for i, c := range p.Cells {
		x0, x1, y0 := g.bounds(i)
		cw := x1 - x0
		if i%g.cols > 0 {
			for y := y0; y < y0+g.rowH; y++ {
				cv.text(ox+x0-1, y, "│", 1)
			}
		}
		cv.text(ox+x0, y0, dayHeader(c), cw)

		for j, box := range cardBoxes(c.Layout, cw, g.rowH) {
			drawCard(cv, c.Layout.Cards[j], ox+x0+box.x0, y0+box.y0, box.x1-box.x0, box.y1-box.y0)
		}
		if c.Layout.More > 0 {
			cv.text(ox+x0, y0+g.rowH-1, fmt.Sprintf("+%d more", c.Layout.More), cw)
		}
	}
}

func drawCard(cv *canvas, card views.Card, x, y, w, h int) {
	if w <= 1 || h <= 0 {
		return
	}
	mark := "▌"
	if card.Image == "" {
		mark = "░"
	}
	lines := []string{card.Title, card.Subtitle, card.Detail}
	row := 0
	for _, s := range lines {
		if s == "" {
			continue
		}
		if row >= h {
			return
		}
		cv.text(x, y+row, mark, 1)
		cv.text(x+1, y+row, s, w-2)
		row++
	}
}

// drawStrip paints prev, current and next side by side, each w columns
// wide, into a 3w canvas.
func drawStrip(s views.Strip, w, h int) *canvas {
	cv := newCanvas(3*w, h)
	for i, p := range s.Panels() {
		drawPanel(cv, p, i*w, w, h)
	}
	return cv
}

// hitTest returns the navigation path of the card at (x, y) in the current
// panel.
func hitTest(p views.Panel, w, h, x, y int) (string, bool) {
	g := gridFor(p, w, h)
	i, ok := g.cellAt(x, y)
	if !ok || i >= len(p.Cells) {
		return "", false
	}
	c := p.Cells[i]
	x0, x1, y0 := g.bounds(i)
	for j, box := range cardBoxes(c.Layout, x1-x0, g.rowH) {
		if box.contains(x-x0, y-y0) {
			return c.Target(j)
		}
	}
	return "", false
}
