package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"slidecal/internal/config"
	"slidecal/internal/model"
)

func TestDecodeEvents(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"array", `[{"id":"a","title":"A","startDate":"2026-03-10","slug":"a"}]`, 1, false},
		{"envelope", `{"events":[{"title":"B","startDate":"2026-03-11","slug":"b"}]}`, 1, false},
		{"empty array", `[]`, 0, false},
		{"blank", "  ", 0, true},
		{"garbage", `<html>`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvents([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			for _, e := range got {
				if e.ID == "" {
					t.Errorf("event %q has no ID", e.Title)
				}
			}
		})
	}
}

func TestDecodeEvents_StableGeneratedID(t *testing.T) {
	body := []byte(`[{"title":"B","startDate":"2026-03-11","slug":"b"}]`)
	a, _ := DecodeEvents(body)
	b, _ := DecodeEvents(body)
	if a[0].ID != b[0].ID {
		t.Errorf("generated IDs differ: %s vs %s", a[0].ID, b[0].ID)
	}
}

func TestFetcher_ConditionalGetUsesCache(t *testing.T) {
	var hits, conditional int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&conditional, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	for i := 0; i < 2; i++ {
		body, err := f.Fetch(context.Background(), "feed", srv.URL)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if string(body) != `[]` {
			t.Fatalf("fetch %d body = %q", i, body)
		}
	}
	if hits != 2 || conditional != 1 {
		t.Errorf("hits=%d conditional=%d", hits, conditional)
	}
}

func TestFetcher_ServerErrorFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"x"}]`))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	if _, err := f.Fetch(context.Background(), "feed", srv.URL); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	body, err := f.Fetch(context.Background(), "feed", srv.URL)
	if err != nil || string(body) != `[{"id":"x"}]` {
		t.Errorf("fallback = %q, %v", body, err)
	}

	uncached := NewFetcher("", srv.Client())
	if _, err := uncached.Fetch(context.Background(), "feed", srv.URL); err == nil {
		t.Error("expected error without cache")
	}
}

func TestFetcher_FileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o600); err != nil {
		t.Fatal(err)
	}
	body, err := NewFetcher("", nil).Fetch(context.Background(), "local", "file://"+path)
	if err != nil || string(body) != `[]` {
		t.Errorf("body = %q, err = %v", body, err)
	}
}

type failingSource struct{}

func (failingSource) ID() string { return "broken" }
func (failingSource) Events(context.Context) ([]model.Event, error) {
	return nil, errors.New("boom")
}

type countingSource struct {
	calls int
	list  []model.Event
}

func (c *countingSource) ID() string { return "counting" }
func (c *countingSource) Events(context.Context) ([]model.Event, error) {
	c.calls++
	return c.list, nil
}

type recordingObserver struct {
	failed []string
	loaded []int
}

func (r *recordingObserver) FetchFailed(id string) { r.failed = append(r.failed, id) }
func (r *recordingObserver) EventsLoaded(n int)    { r.loaded = append(r.loaded, n) }

func TestLoader_DegradesAndCaches(t *testing.T) {
	good := &countingSource{list: []model.Event{{ID: "a", StartDate: "2026-03-10"}}}
	obs := &recordingObserver{}
	l := NewLoader([]Source{failingSource{}, good}, time.Minute, obs)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if got := l.Events(context.Background()); len(got) != 1 {
		t.Fatalf("events = %v", got)
	}
	l.Events(context.Background())
	if good.calls != 1 {
		t.Errorf("cache not used: %d calls", good.calls)
	}
	v := l.Version()

	now = now.Add(2 * time.Minute)
	l.Events(context.Background())
	if good.calls != 2 || l.Version() == v {
		t.Errorf("ttl expiry did not reload: calls=%d", good.calls)
	}
	if len(obs.failed) != 2 || obs.failed[0] != "broken" {
		t.Errorf("failed = %v", obs.failed)
	}
	if len(obs.loaded) != 2 || obs.loaded[1] != 1 {
		t.Errorf("loaded = %v", obs.loaded)
	}
}

func TestLoader_AllFailingYieldsEmptyList(t *testing.T) {
	l := NewLoader([]Source{failingSource{}}, time.Minute, nil)
	got := l.Events(context.Background())
	if got == nil || len(got) != 0 {
		t.Errorf("events = %#v", got)
	}
	if c := NewLoader(nil, time.Minute, nil).Cached(); c == nil {
		t.Error("Cached returned nil")
	}
}

// ctxSource fails with the context error once its caller's context is done.
type ctxSource struct{ list []model.Event }

func (ctxSource) ID() string { return "ctx" }
func (c ctxSource) Events(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.list, nil
}

func TestLoader_CancelledCallerDoesNotEmptyCache(t *testing.T) {
	l := NewLoader([]Source{ctxSource{list: []model.Event{{ID: "a", StartDate: "2026-03-10"}}}}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Refresh(ctx)

	if got := l.Events(context.Background()); len(got) != 1 {
		t.Fatalf("events after a cancelled request = %d, want 1", len(got))
	}
}

type flakySource struct {
	fail bool
	list []model.Event
}

func (f *flakySource) ID() string { return "flaky" }
func (f *flakySource) Events(context.Context) ([]model.Event, error) {
	if f.fail {
		return nil, errors.New("timeout")
	}
	return f.list, nil
}

func TestLoader_FailingSourceKeepsPreviousEvents(t *testing.T) {
	flaky := &flakySource{list: []model.Event{{ID: "f", StartDate: "2026-03-10"}}}
	good := &countingSource{list: []model.Event{{ID: "g", StartDate: "2026-03-11"}}}
	obs := &recordingObserver{}
	l := NewLoader([]Source{flaky, good}, time.Minute, obs)

	if got := l.Refresh(context.Background()); len(got) != 2 {
		t.Fatalf("first load = %v", got)
	}
	flaky.fail = true
	got := l.Refresh(context.Background())
	if len(got) != 2 || got[0].ID != "f" {
		t.Errorf("after failure = %v", got)
	}
	if len(obs.failed) != 1 || obs.failed[0] != "flaky" {
		t.Errorf("failed = %v", obs.failed)
	}
}

// gatedSource blocks until release is closed and counts calls.
type gatedSource struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) ID() string { return "gated" }
func (g *gatedSource) Events(context.Context) ([]model.Event, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	<-g.release
	return []model.Event{{ID: "x", StartDate: "2026-03-10"}}, nil
}

func TestLoader_ConcurrentRefreshesShareOneFetch(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	l := NewLoader([]Source{src}, time.Minute, nil)

	const callers = 5
	results := make(chan int, callers)
	for i := 0; i < callers; i++ {
		go func() { results <- len(l.Events(context.Background())) }()
	}
	<-src.entered
	close(src.release)

	for i := 0; i < callers; i++ {
		if n := <-results; n != 1 {
			t.Errorf("caller got %d events", n)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source fetched %d times, want 1", n)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sources = []config.SourceConfig{
		{ID: "api", Kind: config.SourceKindJSON, URL: "https://example.test/events"},
		{ID: "cal", Kind: config.SourceKindICS, URL: "https://example.test/cal.ics"},
		{ID: "none"},
	}
	srcs := FromConfig(cfg, NewFetcher("", nil), time.UTC)
	if len(srcs) != 2 {
		t.Fatalf("sources = %d", len(srcs))
	}
	if _, ok := srcs[0].(*JSONFeed); !ok {
		t.Errorf("first source is %T", srcs[0])
	}
	if _, ok := srcs[1].(*ICSFeed); !ok || srcs[1].ID() != "cal" {
		t.Errorf("second source is %T", srcs[1])
	}
}

func TestRefresher_BadSpec(t *testing.T) {
	if _, err := NewRefresher(NewLoader(nil, time.Minute, nil), "not a spec", time.UTC); err == nil {
		t.Error("expected error")
	}
	r, err := NewRefresher(NewLoader(nil, time.Minute, nil), "@every 1h", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
