package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"slidecal/internal/config"
	"slidecal/internal/eventindex"
	appLog "slidecal/internal/log"
	"slidecal/internal/metrics"
	"slidecal/internal/model"
	"slidecal/internal/views"
)

const stripCacheSize = 256

// EventLoader is the part of source.Loader the server needs.
type EventLoader interface {
	Events(ctx context.Context) []model.Event
	Version() uint64
}

// Server serves the calendar pages and the event API.
type Server struct {
	cfg     *config.Config
	loader  EventLoader
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time

	// Rendered /calendar pages keyed by view, date, filter, event list
	// version and today's date.
	pages *lru.Cache[string, []byte]
}

// NewServer constructs a new Server. m may be nil.
func NewServer(cfg *config.Config, loader EventLoader, m *metrics.Metrics) *Server {
	pages, err := lru.New[string, []byte](stripCacheSize)
	if err != nil {
		// Only fails for a non-positive size.
		panic(err)
	}
	return &Server{
		cfg:     cfg,
		loader:  loader,
		metrics: m,
		loc:     ResolveLocation(cfg.Timezone),
		now:     time.Now,
		pages:   pages,
	}
}

// Handler returns the router with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/filters", s.handleFilters)
	r.Get("/calendar", s.handleCalendar)
	r.Get("/events/{slug}", s.handleEventDetail)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="slidecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []model.Event `json:"events"`
	Count           int           `json:"count"`
	DisplayTimeZone string        `json:"display_timezone"`
}

// handleEvents returns the filtered flat event list.
//
// GET /api/events?city=Lyon,Nantes&type=concert
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := s.filterFrom(r)
	events := filter.Apply(s.loader.Events(r.Context()))
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          events,
		Count:           len(events),
		DisplayTimeZone: s.loc.String(),
	})
}

// handleFilters lists the cities and event types present in the loaded
// events, ignoring any active filter.
//
// GET /api/filters
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, eventindex.FilterChoices(s.loader.Events(r.Context())))
}

// handleEventDetail is the navigation target of a clicked event card.
func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	http.Redirect(w, r, DetailURL(s.cfg.DetailBaseURL, model.Event{Slug: slug}.Path()), http.StatusFound)
}

// DetailURL joins the configured detail base with an event path.
func DetailURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + path
}

// filterFrom merges the configured default filter with query overrides.
// A query parameter replaces the configured list for that field.
func (s *Server) filterFrom(r *http.Request) eventindex.Filter {
	f := eventindex.Filter{Cities: s.cfg.Filters.Cities, Types: s.cfg.Filters.Types}
	q := r.URL.Query()
	if q.Has("city") {
		f.Cities = splitList(q.Get("city"))
	}
	if q.Has("type") {
		f.Types = splitList(q.Get("type"))
	}
	return f
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ResolveLocation loads the IANA zone name, falling back to time.Local.
func ResolveLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// viewsOptions maps config onto the view options.
func viewsOptions(cfg *config.Config) views.Options {
	return views.Options{SkipEmpty: cfg.SkipEmptyDays, MaxLookahead: cfg.MaxLookaheadDays}
}
