package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"slidecal/internal/capture"
	"slidecal/internal/config"
	"slidecal/internal/dates"
	"slidecal/internal/eventindex"
	appLog "slidecal/internal/log"
	"slidecal/internal/metrics"
	"slidecal/internal/model"
	"slidecal/internal/source"
	"slidecal/internal/tui"
	"slidecal/internal/views"
	"slidecal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	view       string
	date       string
	tui        bool
	once       bool
	dump       bool
	snapshot   string
	logFile    string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		if conf == nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Warn("could not write default config", "config_path", flags.configPath, "err", err)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.view != "" {
		g, err := views.ParseGranularity(flags.view)
		if err != nil {
			appLog.Error("invalid -view", err)
			os.Exit(2)
		}
		conf.DefaultView = g.String()
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if flags.tui {
		closeLog := redirectLog(flags.logFile)
		defer closeLog()
	}

	appLog.Info("slidecal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"default_view", conf.DefaultView,
		"refresh", conf.RefreshCron,
		"sources", len(conf.Sources),
		"tui", flags.tui,
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loc := web.ResolveLocation(conf.Timezone)
	m := metrics.New()
	fetcher := source.NewFetcher(conf.CacheDir, nil)
	loader := source.NewLoader(
		source.FromConfig(conf, fetcher, loc),
		time.Duration(conf.CacheTTLSeconds)*time.Second,
		m,
	)

	switch {
	case flags.once:
		err = runOnce(ctx, loader, conf, flags.dump)
	case flags.snapshot != "":
		err = runSnapshot(ctx, conf, loader, m, flags)
	case flags.tui:
		err = runTUI(ctx, conf, loader, m, loc, flags)
	default:
		err = runServer(ctx, conf, loader, m, loc)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("slidecal failed", err)
		os.Exit(1)
	}
	appLog.Info("slidecal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./slidecal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.view, "view", "", "Initial view: day, 3day, week, 2week or month")
	flag.StringVar(&cfg.date, "date", "", `Initial date, e.g. "2026-03-11" or "next friday"`)
	flag.BoolVar(&cfg.tui, "tui", false, "Run the terminal calendar instead of the web server")
	flag.BoolVar(&cfg.once, "once", false, "Load all sources once, print a summary and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "With -once, print the filtered events as JSON")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG of the calendar page to this path and exit")
	flag.StringVar(&cfg.logFile, "log-file", "", "Log file used while the terminal calendar runs")

	flag.Parse()

	return cfg
}

// redirectLog keeps log lines off the terminal while the alternate screen is
// active.
func redirectLog(path string) func() {
	if path == "" {
		appLog.SetOutput(io.Discard)
		return func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		appLog.Error("failed to open log file; logging disabled", err, "path", path)
		appLog.SetOutput(io.Discard)
		return func() {}
	}
	appLog.SetOutput(f)
	return func() { _ = f.Close() }
}

func configFilter(conf *config.Config) eventindex.Filter {
	return eventindex.Filter{Cities: conf.Filters.Cities, Types: conf.Filters.Types}
}

func runOnce(ctx context.Context, loader *source.Loader, conf *config.Config, dump bool) error {
	events := configFilter(conf).Apply(loader.Refresh(ctx))
	if dump {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}
	fmt.Printf("%d events from %d sources\n", len(events), len(conf.Sources))
	return nil
}

func runServer(ctx context.Context, conf *config.Config, loader *source.Loader, m *metrics.Metrics, loc *time.Location) error {
	loader.Refresh(ctx)

	refresher, err := source.NewRefresher(loader, conf.RefreshCron, loc)
	if err != nil {
		return err
	}
	refresher.Start()
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		refresher.Stop(stopCtx)
	}()

	return web.NewServer(conf, loader, m).ListenAndServe(ctx)
}

// runSnapshot serves the calendar in-process and captures it with a headless
// browser.
func runSnapshot(ctx context.Context, conf *config.Config, loader *source.Loader, m *metrics.Metrics, flags flagConfig) error {
	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- web.NewServer(conf, loader, m).ListenAndServe(srvCtx)
	}()
	if err := waitHealthy(ctx, conf.Listen, srvErr); err != nil {
		return err
	}

	q := url.Values{}
	q.Set("view", conf.DefaultView)
	if flags.date != "" {
		q.Set("date", flags.date)
	}
	target := "http://" + conf.Listen + "/calendar?" + q.Encode()

	if err := capture.CalendarPNG(ctx, capture.Options{
		URL:        target,
		OutputPath: flags.snapshot,
		Settle:     200 * time.Millisecond,
	}); err != nil {
		return err
	}
	appLog.Info("snapshot written", "path", flags.snapshot, "url", target)
	return nil
}

func waitHealthy(ctx context.Context, listen string, srvErr <-chan error) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-srvErr:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		resp, err := client.Get("http://" + listen + "/health")
		if err != nil {
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}
	return fmt.Errorf("server on %s did not become healthy", listen)
}

func runTUI(ctx context.Context, conf *config.Config, loader *source.Loader, m *metrics.Metrics, loc *time.Location, flags flagConfig) error {
	g, err := views.ParseGranularity(conf.DefaultView)
	if err != nil {
		return err
	}

	now := func() time.Time { return time.Now().In(loc) }
	start := now()
	if flags.date != "" {
		d, err := dates.ParseLoose(flags.date, start)
		if err != nil {
			return err
		}
		start = d
	}

	filter := configFilter(conf)
	cc := conf.Carousel

	ui := tui.New(tui.Options{
		View:         g,
		Date:         start,
		Views:        views.Options{SkipEmpty: conf.SkipEmptyDays, MaxLookahead: conf.MaxLookaheadDays},
		Carousel:     cc.Options(),
		CellWidthPx:  cc.CellWidthPx,
		CellHeightPx: cc.CellHeightPx,
		Load: func(ctx context.Context) []model.Event {
			return filter.Apply(loader.Events(ctx))
		},
		Open: func(path string) {
			appLog.Info("open event", "url", web.DetailURL(conf.DetailBaseURL, path))
		},
		Metrics: m,
		Now:     now,
	})

	p := tea.NewProgram(ui, tea.WithContext(ctx), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
