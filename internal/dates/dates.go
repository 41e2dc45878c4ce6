// Package dates holds local calendar-day arithmetic. All values are
// normalized to midnight in their own location; wall-clock time is ignored.
package dates

import (
	"errors"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"slidecal/internal/model"
)

// Format renders t as its local calendar day, YYYY-MM-DD. It never converts
// to UTC first, so late-evening times stay on the same day.
func Format(t time.Time) string {
	return t.Format(model.DayLayout)
}

// Parse reads a YYYY-MM-DD day as midnight in loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(model.DayLayout, strings.TrimSpace(s), loc)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays shifts by whole calendar days. time.AddDate keeps DST days at
// midnight, which Add(24*time.Hour) would not.
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfWeek returns the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return AddDays(t, -offset)
}

// MondayOffset is the Monday-first column of t's weekday (Monday=0, Sunday=6).
func MondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// FirstOfMonth returns midnight on the 1st of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AddMonths moves to the 1st of the month n months away. Anchoring on the
// 1st avoids AddDate normalizing Jan 31 + 1 month into March.
func AddMonths(t time.Time, n int) time.Time {
	return FirstOfMonth(t).AddDate(0, n, 0)
}

func DaysInMonth(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ErrUnrecognized is returned when a date expression matches nothing.
var ErrUnrecognized = errors.New("dates: unrecognized date expression")

// ParseLoose accepts either YYYY-MM-DD or a natural-language expression
// such as "tomorrow" or "next friday", resolved relative to base.
func ParseLoose(s string, base time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnrecognized
	}
	if t, err := Parse(s, base.Location()); err == nil {
		return t, nil
	}
	if strings.EqualFold(s, "today") {
		return StartOfDay(base), nil
	}

	r, err := parser.Parse(s, base)
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, ErrUnrecognized
	}
	return StartOfDay(r.Time.In(base.Location())), nil
}
