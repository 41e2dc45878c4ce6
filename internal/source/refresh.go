package source

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "slidecal/internal/log"
)

// Refresher reloads a Loader on a cron schedule so requests rarely pay for a
// fetch.
type Refresher struct {
	cron   *cron.Cron
	loader *Loader
}

// NewRefresher schedules loader.Refresh with a standard five-field spec,
// or a descriptor such as "@every 10m".
func NewRefresher(loader *Loader, spec string, loc *time.Location) (*Refresher, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	r := &Refresher{cron: c, loader: loader}
	if _, err := c.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("source: refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	start := time.Now()
	n := len(r.loader.Refresh(ctx))
	appLog.Debug("scheduled refresh done", "events", n, "elapsed", time.Since(start))
}

// Start runs the schedule in the background.
func (r *Refresher) Start() { r.cron.Start() }

// Stop halts the schedule and waits for a running refresh, or ctx.
func (r *Refresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
