package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"slidecal/internal/dates"
	appLog "slidecal/internal/log"
	"slidecal/internal/model"
)

const (
	defaultHorizonDays        = 180
	maxOccurrencesPerEvent    = 2000
	icsDateLayout             = "20060102"
	icsDateTimeLayout         = "20060102T150405"
	icsDateTimeUTCLayout      = "20060102T150405Z"
	icsImageProperty          = "IMAGE"
	icsRecurrenceIDProperty   = "RECURRENCE-ID"
	icsCategoriesPropertyName = "CATEGORIES"
)

// ICSOptions controls how an iCalendar feed is turned into events.
type ICSOptions struct {
	// Location is the display timezone. Timed occurrences are bucketed by
	// their date in this zone. Nil means time.Local.
	Location *time.Location
	// HorizonDays bounds recurrence expansion to now ± HorizonDays.
	HorizonDays int
	// Now overrides the clock; tests only.
	Now func() time.Time
}

// ICSFeed reads a VCALENDAR and flattens its VEVENTs, expanding RRULEs
// inside the horizon.
type ICSFeed struct {
	id      string
	url     string
	fetcher *Fetcher
	opts    ICSOptions
}

func NewICSFeed(id, url string, f *Fetcher, opts ICSOptions) *ICSFeed {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = defaultHorizonDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ICSFeed{id: id, url: url, fetcher: f, opts: opts}
}

func (f *ICSFeed) ID() string { return f.id }

func (f *ICSFeed) Events(ctx context.Context) ([]model.Event, error) {
	body, err := f.fetcher.Fetch(ctx, f.id, f.url)
	if err != nil {
		return nil, err
	}
	parsed, err := parseICS(f.id, body)
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", f.id, err)
	}

	now := f.opts.Now().In(f.opts.Location)
	from := dates.AddDays(now, -f.opts.HorizonDays)
	to := dates.AddDays(now, f.opts.HorizonDays+1)
	return expandAll(parsed, from, to, f.opts.Location), nil
}

// vevent is one VEVENT reduced to what the calendar shows.
type vevent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Category    string
	Image       string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule      string
	ExDates    []time.Time
	Recurrence *time.Time
}

func parseICS(id string, body []byte) ([]vevent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]vevent, 0)
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(comp)
		if err != nil {
			// Skip the bad VEVENT, keep the rest.
			appLog.Error("ics vevent skipped", err, "id", id)
			continue
		}
		out = append(out, ev)
	}
	appLog.Debug("ics parse completed", "id", id, "vevents", len(out))
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	out.Image = propValue(ve, ical.ComponentProperty(icsImageProperty))
	if cats := propValue(ve, ical.ComponentProperty(icsCategoriesPropertyName)); cats != "" {
		out.Category = strings.TrimSpace(strings.Split(cats, ",")[0])
	}

	out.AllDay = !strings.Contains(dtStart.Value, "T")
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}

	if out.AllDay {
		// DATE values carry no zone; keep them as calendar dates.
		start, err := time.Parse(icsDateLayout, dtStart.Value[:min(len(dtStart.Value), 8)])
		if err != nil {
			return out, fmt.Errorf("DTSTART %q: %w", dtStart.Value, err)
		}
		out.Start = start
		out.End = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && len(dtEnd.Value) >= 8 {
			if end, err := time.Parse(icsDateLayout, dtEnd.Value[:8]); err == nil && end.After(start) {
				out.End = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("DTSTART %q: %w", dtStart.Value, err)
		}
		out.Start = start
		out.End = start
		if end, err := ve.GetEndAt(); err == nil && end.After(start) {
			out.End = end
		}
	}

	if out.UID == "" {
		out.UID = stableID(out.Summary, dtStart.Value)
	}

	out.RRule = propValue(ve, ical.ComponentPropertyRrule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, out.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	if rid := ve.GetProperty(ical.ComponentProperty(icsRecurrenceIDProperty)); rid != nil {
		if t, err := parseICSTime(rid.Value, out.Start.Location()); err == nil {
			out.Recurrence = &t
		}
	}
	return out, nil
}

// parseICSTime handles the bare DATE, floating DATE-TIME and UTC forms used
// by EXDATE and RECURRENCE-ID.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse(icsDateTimeUTCLayout, v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation(icsDateTimeLayout, v, loc)
	default:
		return time.ParseInLocation(icsDateLayout, v, loc)
	}
}

// expandAll turns parsed VEVENTs into flat events in [from, to). Overrides
// (RECURRENCE-ID) replace the generated instance they point at.
func expandAll(parsed []vevent, from, to time.Time, loc *time.Location) []model.Event {
	overrides := make(map[string]vevent)
	for _, ev := range parsed {
		if ev.Recurrence != nil {
			overrides[occurrenceKey(ev.UID, *ev.Recurrence)] = ev
		}
	}

	out := make([]model.Event, 0, len(parsed))
	for _, ev := range parsed {
		if ev.Recurrence != nil {
			if overlaps(ev.Start, ev.End, from, to) {
				out = append(out, toEvent(ev, ev.Start, ev.End, loc, true))
			}
			continue
		}
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, from, to) {
				out = append(out, toEvent(ev, ev.Start, ev.End, loc, false))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides, from, to, loc)...)
	}
	return out
}

func expandRecurring(ev vevent, overrides map[string]vevent, from, to time.Time, loc *time.Location) []model.Event {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics RRULE ignored", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	duration := ev.End.Sub(ev.Start)
	starts := set.Between(from.In(ev.Start.Location()).Add(-duration), to.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Warn("ics occurrences truncated", "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		if _, ok := overrides[occurrenceKey(ev.UID, s)]; ok {
			continue
		}
		out = append(out, toEvent(ev, s, s.Add(duration), loc, true))
	}
	return out
}

func occurrenceKey(uid string, start time.Time) string {
	return uid + "|" + start.UTC().Format(icsDateTimeUTCLayout)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		aEnd = aStart.Add(time.Nanosecond)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func toEvent(ev vevent, start, end time.Time, loc *time.Location, recurring bool) model.Event {
	e := model.Event{
		Title:            ev.Summary,
		ShortDescription: firstLine(ev.Description),
		Description:      ev.Description,
		LocationName:     ev.Location,
		EventType:        ev.Category,
		FeaturedImage:    ev.Image,
	}

	if ev.AllDay {
		// DTEND is exclusive for DATE values.
		last := end.AddDate(0, 0, -1)
		if last.Before(start) {
			last = start
		}
		e.StartDate = start.Format(model.DayLayout)
		e.EndDate = last.Format(model.DayLayout)
	} else {
		ls, le := start.In(loc), end.In(loc)
		e.StartDate = ls.Format(model.DayLayout)
		e.StartTime = ls.Format("15:04")
		lastInstant := le
		if le.After(ls) {
			// An event ending exactly at midnight does not occupy that day.
			lastInstant = le.Add(-time.Nanosecond)
		}
		e.EndDate = lastInstant.Format(model.DayLayout)
		if !le.Equal(ls) {
			e.EndTime = le.Format("15:04")
		}
	}

	e.ID = ev.UID
	if recurring {
		e.ID = ev.UID + "@" + e.StartDate
	}
	e.Slug = slugify(ev.Summary) + "-" + shortHash(e.ID)
	return e
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if r < unicode.MaxASCII {
				b.WriteRune(r)
				dash = false
				continue
			}
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "event"
	}
	return out
}

func shortHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
