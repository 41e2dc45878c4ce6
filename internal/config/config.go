package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"slidecal/internal/carousel"
)

// Source kinds understood by internal/source.
const (
	SourceKindJSON = "json"
	SourceKindICS  = "ics"
)

// SourceConfig describes a single event feed.
type SourceConfig struct {
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Kind is "json" (flat event array) or "ics".
	Kind string `yaml:"kind" json:"kind"`
	// URL is the feed endpoint.
	URL string `yaml:"url" json:"url"`
}

// FilterConfig is the default city/type allow-list applied before bucketing.
type FilterConfig struct {
	Cities []string `yaml:"cities" json:"cities"`
	Types  []string `yaml:"types" json:"types"`
}

// CarouselConfig tunes the swipe carousel. Distances are in pixels; the
// terminal host converts cells to pixels with CellWidthPx/CellHeightPx.
type CarouselConfig struct {
	Threshold        float64 `yaml:"threshold" json:"threshold"`
	VelocityMin      float64 `yaml:"velocity_min" json:"velocity_min"`
	DeadzonePx       float64 `yaml:"deadzone_px" json:"deadzone_px"`
	DurationMs       int     `yaml:"duration_ms" json:"duration_ms"`
	WheelThresholdPx float64 `yaml:"wheel_threshold_px" json:"wheel_threshold_px"`
	WheelDebounceMs  int     `yaml:"wheel_debounce_ms" json:"wheel_debounce_ms"`
	CellWidthPx      float64 `yaml:"cell_width_px" json:"cell_width_px"`
	CellHeightPx     float64 `yaml:"cell_height_px" json:"cell_height_px"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web UI.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to decide which calendar day "today" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DefaultView is the granularity shown when none is requested:
	// "day", "3day", "week", "2week" or "month".
	DefaultView string `yaml:"default_view" json:"default_view"`

	// SkipEmptyDays makes the day view page to the nearest day with events.
	SkipEmptyDays bool `yaml:"skip_empty_days" json:"skip_empty_days"`

	// MaxLookaheadDays bounds the empty-day scan of the day view.
	MaxLookaheadDays int `yaml:"max_lookahead_days" json:"max_lookahead_days"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to refresh event sources in the background.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds conditional-GET caches for remote feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CacheTTLSeconds is how long a loaded event list is served from memory.
	// The default outlives the refresh schedule so requests rarely fetch.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// DetailBaseURL is where /events/{slug} redirects to. Empty keeps the
	// redirect relative to this server.
	DetailBaseURL string `yaml:"detail_base_url" json:"detail_base_url"`

	// ICSHorizonDays bounds recurrence expansion of ICS feeds on both sides of today.
	ICSHorizonDays int `yaml:"ics_horizon_days" json:"ics_horizon_days"`

	Sources  []SourceConfig `yaml:"sources" json:"sources"`
	Filters  FilterConfig   `yaml:"filters" json:"filters"`
	Carousel CarouselConfig `yaml:"carousel" json:"carousel"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultCarousel is the single tuned constant set shared by drag and wheel input.
func DefaultCarousel() CarouselConfig {
	return CarouselConfig{
		Threshold:        0.2,
		VelocityMin:      0.3,
		DeadzonePx:       8,
		DurationMs:       300,
		WheelThresholdPx: 80,
		WheelDebounceMs:  50,
		CellWidthPx:      8,
		CellHeightPx:     16,
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		Timezone:         "Local",
		DefaultView:      "week",
		SkipEmptyDays:    true,
		MaxLookaheadDays: 60,
		RefreshCron:      "*/15 * * * *",
		CacheDir:         "./cache",
		CacheTTLSeconds:  1200,
		ICSHorizonDays:   366,
		Sources:          []SourceConfig{},
		Filters:          FilterConfig{},
		Carousel:         DefaultCarousel(),
		BasicAuth:        nil,
		LogLevel:         "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.DefaultView {
	case "day", "3day", "week", "2week", "month":
		// ok
	default:
		// Unknown value; fall back to week to avoid surprising layouts.
		c.DefaultView = def.DefaultView
	}
	if c.MaxLookaheadDays <= 0 {
		c.MaxLookaheadDays = def.MaxLookaheadDays
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = def.CacheTTLSeconds
	}
	if c.ICSHorizonDays <= 0 {
		c.ICSHorizonDays = def.ICSHorizonDays
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Kind != SourceKindICS {
			s.Kind = SourceKindJSON
		}
		if s.ID == "" {
			if s.Name != "" {
				s.ID = s.Name
			} else {
				s.ID = s.URL
			}
		}
	}
	c.Carousel.normalize()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Options converts the tuning to carousel options. Fields the file does not
// carry keep the carousel defaults.
func (cc CarouselConfig) Options() carousel.Options {
	o := carousel.DefaultOptions()
	o.Threshold = cc.Threshold
	o.VelocityMin = cc.VelocityMin
	o.Deadzone = cc.DeadzonePx
	o.Duration = time.Duration(cc.DurationMs) * time.Millisecond
	o.WheelThreshold = cc.WheelThresholdPx
	o.WheelDebounce = time.Duration(cc.WheelDebounceMs) * time.Millisecond
	return o
}

func (cc *CarouselConfig) normalize() {
	def := DefaultCarousel()
	if cc.Threshold <= 0 || cc.Threshold >= 1 {
		cc.Threshold = def.Threshold
	}
	if cc.VelocityMin <= 0 {
		cc.VelocityMin = def.VelocityMin
	}
	if cc.DeadzonePx <= 0 {
		cc.DeadzonePx = def.DeadzonePx
	}
	if cc.DurationMs <= 0 {
		cc.DurationMs = def.DurationMs
	}
	if cc.WheelThresholdPx <= 0 {
		cc.WheelThresholdPx = def.WheelThresholdPx
	}
	if cc.WheelDebounceMs <= 0 {
		cc.WheelDebounceMs = def.WheelDebounceMs
	}
	if cc.CellWidthPx <= 0 {
		cc.CellWidthPx = def.CellWidthPx
	}
	if cc.CellHeightPx <= 0 {
		cc.CellHeightPx = def.CellHeightPx
	}
}

// ApplyEnv overrides selected fields from the environment. A .env file in
// the working directory is loaded first if present.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("SLIDECAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("SLIDECAL_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("SLIDECAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".slidecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
