// Package source loads the flat event list the calendar displays.
//
// Failures never block rendering: a feed that cannot be fetched or parsed
// contributes zero events and the error is logged and counted.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"slidecal/internal/config"
	appLog "slidecal/internal/log"
	"slidecal/internal/model"
)

// Source yields events from one feed.
type Source interface {
	ID() string
	Events(ctx context.Context) ([]model.Event, error)
}

// Observer is notified of load results. internal/metrics implements it.
type Observer interface {
	FetchFailed(sourceID string)
	EventsLoaded(n int)
}

// Static is a fixed in-memory event list.
type Static struct {
	Name string
	List []model.Event
}

func (s Static) ID() string { return s.Name }

func (s Static) Events(context.Context) ([]model.Event, error) {
	return s.List, nil
}

// JSONFeed is the collaborator's GET events endpoint: a JSON array of
// events, optionally wrapped as {"events": [...]}.
type JSONFeed struct {
	id      string
	url     string
	fetcher *Fetcher
}

func NewJSONFeed(id, url string, f *Fetcher) *JSONFeed {
	return &JSONFeed{id: id, url: url, fetcher: f}
}

func (j *JSONFeed) ID() string { return j.id }

func (j *JSONFeed) Events(ctx context.Context) ([]model.Event, error) {
	body, err := j.fetcher.Fetch(ctx, j.id, j.url)
	if err != nil {
		return nil, err
	}
	events, err := DecodeEvents(body)
	if err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", j.id, err)
	}
	return events, nil
}

// DecodeEvents parses a feed body and fills in missing IDs.
func DecodeEvents(body []byte) ([]model.Event, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.New("empty body")
	}

	var events []model.Event
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Events []model.Event `json:"events"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		events = envelope.Events
	} else if err := json.Unmarshal(body, &events); err != nil {
		return nil, err
	}

	for i := range events {
		if events[i].ID == "" {
			events[i].ID = stableID(events[i].Slug, events[i].Title, events[i].StartDate)
		}
	}
	return events, nil
}

// stableID derives a deterministic ID so an event keeps its identity (and
// its placeholder colours) across reloads.
func stableID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(parts, "\x00"))).String()
}

// FromConfig builds the configured sources sharing one fetcher.
func FromConfig(cfg *config.Config, f *Fetcher, loc *time.Location) []Source {
	out := make([]Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if sc.URL == "" {
			continue
		}
		switch sc.Kind {
		case config.SourceKindICS:
			out = append(out, NewICSFeed(sc.ID, sc.URL, f, ICSOptions{
				Location:    loc,
				HorizonDays: cfg.ICSHorizonDays,
			}))
		default:
			out = append(out, NewJSONFeed(sc.ID, sc.URL, f))
		}
	}
	return out
}

// refreshTimeout bounds one reload of every source.
const refreshTimeout = 2 * time.Minute

// Loader merges sources and keeps the result in memory for ttl.
type Loader struct {
	sources  []Source
	ttl      time.Duration
	observer Observer
	now      func() time.Time
	group    singleflight.Group

	mu        sync.RWMutex
	events    []model.Event
	last      map[int][]model.Event // by source index, last successful load
	updatedAt time.Time
	version   uint64
	loaded    bool
}

// NewLoader creates a Loader. observer may be nil.
func NewLoader(sources []Source, ttl time.Duration, observer Observer) *Loader {
	return &Loader{
		sources:  sources,
		ttl:      ttl,
		observer: observer,
		now:      time.Now,
	}
}

// Events returns the cached list, reloading once it is older than ttl. The
// result is never nil.
func (l *Loader) Events(ctx context.Context) []model.Event {
	l.mu.RLock()
	fresh := l.loaded && l.now().Sub(l.updatedAt) < l.ttl
	events := l.events
	l.mu.RUnlock()
	if fresh {
		return events
	}
	return l.Refresh(ctx)
}

// Cached returns the last loaded list without touching the network.
func (l *Loader) Cached() []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.events == nil {
		return []model.Event{}
	}
	return l.events
}

// Version changes every time Refresh stores a new list.
func (l *Loader) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Refresh reloads every source. Concurrent callers share one reload, and the
// reload is not cancelled with ctx: a caller that goes away gets the cached
// list while the reload finishes for everyone else.
func (l *Loader) Refresh(ctx context.Context) []model.Event {
	ch := l.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return l.reload(rctx), nil
	})
	select {
	case res := <-ch:
		return res.Val.([]model.Event)
	case <-ctx.Done():
		return l.Cached()
	}
}

// reload fetches every source. A failing source keeps the events of its
// last successful load; one that never loaded contributes nothing.
func (l *Loader) reload(ctx context.Context) []model.Event {
	l.mu.RLock()
	prev := l.last
	l.mu.RUnlock()

	last := make(map[int][]model.Event, len(l.sources))
	events := make([]model.Event, 0)
	for i, src := range l.sources {
		evs, err := src.Events(ctx)
		if err != nil {
			if l.observer != nil {
				l.observer.FetchFailed(src.ID())
			}
			old, ok := prev[i]
			if !ok {
				appLog.Error("event source failed; continuing without it", err, "id", src.ID())
				continue
			}
			appLog.Error("event source failed; keeping previous events", err, "id", src.ID(), "count", len(old))
			evs = old
		}
		last[i] = evs
		events = append(events, evs...)
	}

	l.mu.Lock()
	l.events = events
	l.last = last
	l.updatedAt = l.now()
	l.version++
	l.loaded = true
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.EventsLoaded(len(events))
	}
	appLog.Info("events loaded", "count", len(events), "sources", len(l.sources))
	return events
}
