package tui

import (
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"slidecal/internal/views"
)

func TestCanvas_Window(t *testing.T) {
	cv := newCanvas(10, 1)
	cv.text(0, 0, "ab日本cd", 10)

	tests := []struct {
		from, width int
		want        string
	}{
		{0, 8, "ab日本cd"},
		{0, 3, "ab "},  // 日 cut at the right edge
		{3, 4, " 本c"}, // right half of 日 at the left edge
		{6, 6, "cd    "},
		{-2, 4, "  ab"},
	}
	for _, tt := range tests {
		got := cv.window(0, tt.from, tt.width)
		if got != tt.want {
			t.Errorf("window(%d,%d) = %q, want %q", tt.from, tt.width, got, tt.want)
		}
		if w := runewidth.StringWidth(got); w != tt.width {
			t.Errorf("window(%d,%d) width = %d", tt.from, tt.width, w)
		}
	}
}

func TestCanvas_TextTruncates(t *testing.T) {
	cv := newCanvas(6, 1)
	cv.text(0, 0, "Jazz Night", 6)
	if got := cv.window(0, 0, 6); got != "Jazz …" {
		t.Errorf("truncated = %q", got)
	}
}

func TestTrackEasing(t *testing.T) {
	now := time.Unix(0, 0)
	tr := &track{now: func() time.Time { return now }}
	tr.SetTransform(-100, false, 0)
	tr.SetTransform(-200, true, 300*time.Millisecond)

	now = now.Add(150 * time.Millisecond)
	if tr.advance() {
		t.Fatal("finished early")
	}
	if tr.offset >= -150 || tr.offset <= -200 {
		t.Errorf("ease-out midpoint = %v", tr.offset)
	}

	now = now.Add(200 * time.Millisecond)
	if !tr.advance() || tr.offset != -200 {
		t.Errorf("end = %v", tr.offset)
	}
	if tr.advance() {
		t.Error("finished twice")
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := newScheduler()
	ran := 0
	cancel := s.RequestFrame(func() { ran++ })
	s.AfterFunc(time.Second, func() { ran += 10 })
	cancel()
	if len(s.drain()) != 2 {
		t.Error("expected two queued ticks")
	}
	s.run(1)
	s.run(2)
	s.run(2)
	if ran != 10 {
		t.Errorf("ran = %d", ran)
	}
}

func TestHitTest_MonthGrid(t *testing.T) {
	anchor := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	events := testEvents
	p := views.BuildPanel(views.New(views.Month, views.Options{}), anchor, events, anchor)

	// March 2026 starts on a Sunday, so the 11th is row 2, column 2.
	g := gridFor(p, 70, 37)
	x0, _, y0 := g.bounds(16)
	if p.Cells[16].Key != "2026-03-11" {
		t.Fatalf("cell 16 = %s", p.Cells[16].Key)
	}
	if path, ok := hitTest(p, 70, 37, x0+1, y0+1); !ok || path != "/events/jazz-night" {
		t.Errorf("hit = %q, %v", path, ok)
	}
	if _, ok := hitTest(p, 70, 37, x0+1, y0); ok {
		t.Error("day header should not be a target")
	}
}
