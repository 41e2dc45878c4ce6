package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slidecal/internal/carousel"
	"slidecal/internal/dates"
	"slidecal/internal/eventindex"
	appLog "slidecal/internal/log"
	"slidecal/internal/views"
)

//go:embed templates/*.html
var templateFS embed.FS

var calendarTmpl = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"gradient": func(g views.Gradient) template.CSS {
		return template.CSS(fmt.Sprintf("background: linear-gradient(%ddeg, %s, %s)", g.Angle, g.From, g.To))
	},
	"cardClass": func(l views.Layout) string {
		return "layout-" + l.Kind.String() + " split-" + l.Split.String()
	},
	"weekday": func(t time.Time) string { return t.Format("Mon") },
}).ParseFS(templateFS, "templates/calendar.html"))

type viewTab struct {
	Name   string
	Title  string
	Href   string
	Active bool
}

// filterLink toggles one value in or out of a filter list.
type filterLink struct {
	Label  string
	Href   string
	Active bool
}

type filterGroup struct {
	Param     string
	Title     string
	AllHref   string
	AllActive bool
	Links     []filterLink
}

type calendarPage struct {
	View     string
	Date     string
	Label    string
	Tabs     []viewTab
	PrevHref string
	NextHref string
	Today    string
	Strip    views.Strip
	Panels   [3]views.Panel
	Filters  []filterGroup
	Carousel carousel.Options
}

// handleCalendar renders the prev/current/next strip for a view and date.
//
// GET /calendar?view=week&date=2026-03-10&city=Lyon&type=concert
//   - view: day, 3day, week, 2week or month (default from config)
//   - date: YYYY-MM-DD or an expression like "next friday" (default today)
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now().In(s.loc)

	viewName := q.Get("view")
	if viewName == "" {
		viewName = s.cfg.DefaultView
	}
	g, err := views.ParseGranularity(viewName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	anchor := dates.StartOfDay(now)
	if raw := q.Get("date"); raw != "" {
		d, err := dates.ParseLoose(raw, now)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unrecognized date %q", raw))
			return
		}
		anchor = d
	}

	filter := s.filterFrom(r)
	// Events is cheap while the loader cache is fresh; calling it first keeps
	// the version in the key current.
	all := s.loader.Events(r.Context())
	key := strings.Join([]string{
		g.String(),
		dates.Format(anchor),
		filter.Key(),
		fmt.Sprint(s.loader.Version()),
		dates.Format(now),
	}, "|")

	body, ok := s.pages.Get(key)
	if !ok {
		start := time.Now()
		events := filter.Apply(all)
		view := views.New(g, viewsOptions(s.cfg))
		strip := views.BuildStrip(view, anchor, events, now)

		body, err = s.renderCalendar(r, g, anchor, strip, filter, eventindex.FilterChoices(all))
		if err != nil {
			appLog.Error("calendar render failed", err, "view", g.String())
			writeError(w, http.StatusInternalServerError, "failed to render calendar")
			return
		}
		s.pages.Add(key, body)
		s.metrics.Rendered(g.String(), time.Since(start))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) renderCalendar(r *http.Request, g views.Granularity, anchor time.Time, strip views.Strip, filter eventindex.Filter, choices eventindex.Choices) ([]byte, error) {
	href := func(view views.Granularity, d time.Time) string {
		q := url.Values{}
		for _, k := range []string{"city", "type"} {
			if r.URL.Query().Has(k) {
				q.Set(k, r.URL.Query().Get(k))
			}
		}
		q.Set("view", view.String())
		q.Set("date", dates.Format(d))
		return "/calendar?" + q.Encode()
	}

	tabs := make([]viewTab, 0, len(views.All()))
	for _, v := range views.All() {
		tabs = append(tabs, viewTab{
			Name:   v.String(),
			Title:  v.Title(),
			Href:   href(v, anchor),
			Active: v == g,
		})
	}

	page := calendarPage{
		View:     g.String(),
		Date:     dates.Format(anchor),
		Label:    strip.Current.Label,
		Tabs:     tabs,
		PrevHref: href(g, strip.Prev.Anchor),
		NextHref: href(g, strip.Next.Anchor),
		Today:    href(g, s.now().In(s.loc)),
		Strip:    strip,
		Panels:   strip.Panels(),
		Filters: []filterGroup{
			filterGroupFor(href(g, anchor), "city", "City", filter.Cities, choices.Cities),
			filterGroupFor(href(g, anchor), "type", "Type", filter.Types, choices.Types),
		},
		Carousel: s.cfg.Carousel.Options(),
	}

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("web: execute calendar template: %w", err)
	}
	return buf.Bytes(), nil
}

// filterGroupFor builds toggle links for one filter parameter. Each link
// adds or removes its value from the active list; "All" clears the list.
func filterGroupFor(base, param, title string, active, choices []string) filterGroup {
	with := func(list []string) string {
		u, err := url.Parse(base)
		if err != nil {
			return base
		}
		q := u.Query()
		q.Set(param, strings.Join(list, ","))
		u.RawQuery = q.Encode()
		return u.String()
	}

	grp := filterGroup{
		Param:     param,
		Title:     title,
		AllHref:   with(nil),
		AllActive: len(active) == 0,
	}
	for _, c := range choices {
		on := containsFold(active, c)
		next := make([]string, 0, len(active)+1)
		for _, a := range active {
			if !strings.EqualFold(strings.TrimSpace(a), c) {
				next = append(next, a)
			}
		}
		if !on {
			next = append(next, c)
		}
		grp.Links = append(grp.Links, filterLink{Label: c, Href: with(next), Active: on})
	}
	return grp
}

func containsFold(list []string, v string) bool {
	for _, it := range list {
		if strings.EqualFold(strings.TrimSpace(it), v) {
			return true
		}
	}
	return false
}
