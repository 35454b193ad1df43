package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"schedcard/internal/datefmt"
	"schedcard/internal/model"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// FontConfig points at optional TTF files. Empty paths keep the embedded
// Go fonts.
type FontConfig struct {
	Regular string `yaml:"regular,omitempty" json:"regular,omitempty"`
	Bold    string `yaml:"bold,omitempty" json:"bold,omitempty"`
}

// RenderConfig holds the card look and the options passed to the painter.
type RenderConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	Title           string `yaml:"title" json:"title"`
	Footer          string `yaml:"footer" json:"footer"`
	ProfileImageURL string `yaml:"profile_image_url,omitempty" json:"profile_image_url,omitempty"`

	ShowEndDate  bool   `yaml:"show_end_date" json:"show_end_date"`
	ShowDuration bool   `yaml:"show_duration" json:"show_duration"`
	DateFormat   string `yaml:"date_format" json:"date_format"`

	// Theme is "dark" (default) or "light".
	Theme string `yaml:"theme" json:"theme"`

	// ImageTimeout bounds each category/avatar image load, e.g. "8s".
	ImageTimeout string `yaml:"image_timeout" json:"image_timeout"`
	// ImageRetries is the number of extra attempts on transient failures.
	ImageRetries int `yaml:"image_retries" json:"image_retries"`
	// ImageHosts lists the hosts whose http(s) images API callers may
	// reference. Configured category and profile images are always allowed.
	ImageHosts []string `yaml:"image_hosts" json:"image_hosts"`

	Fonts FontConfig `yaml:"fonts,omitempty" json:"fonts,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic re-rendering of the preview.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days considered for entries.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// MaxEntries caps the rows of a card (1..7).
	MaxEntries int `yaml:"max_entries" json:"max_entries"`

	// ShowAllDay keeps all-day events in the schedule.
	ShowAllDay bool `yaml:"show_all_day" json:"show_all_day"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// CategoryImages maps a category name to an image URL or local path.
	CategoryImages map[string]string `yaml:"category_images" json:"category_images"`

	Render RenderConfig `yaml:"render" json:"render"`

	// OutputPath is where the refresh job writes the latest card.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultRefreshCron  = "*/15 * * * *"
	defaultHorizonDays  = 7
	defaultWidth        = 1080
	defaultHeight       = 1350
	defaultTitle        = "Stream Schedule"
	defaultFooter       = "Made with schedcard"
	defaultTheme        = "dark"
	defaultImageTimeout = "8s"
	defaultOutputPath   = "/var/lib/schedcard/preview.png"
	defaultCacheDir     = "/var/lib/schedcard/ics-cache"
	defaultImageHost    = "static-cdn.jtvnw.net"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		RefreshCron:    defaultRefreshCron,
		HorizonDays:    defaultHorizonDays,
		MaxEntries:     model.MaxEntries,
		ShowAllDay:     false,
		ICS:            []ICSConfig{},
		CategoryImages: map[string]string{},
		Render: RenderConfig{
			Width:        defaultWidth,
			Height:       defaultHeight,
			Title:        defaultTitle,
			Footer:       defaultFooter,
			ShowEndDate:  true,
			ShowDuration: true,
			DateFormat:   datefmt.DefaultPattern,
			Theme:        defaultTheme,
			ImageTimeout: defaultImageTimeout,
			ImageRetries: 1,
			ImageHosts:   []string{defaultImageHost},
		},
		OutputPath: defaultOutputPath,
		CacheDir:   defaultCacheDir,
		BasicAuth:  nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.MaxEntries <= 0 || c.MaxEntries > model.MaxEntries {
		c.MaxEntries = model.MaxEntries
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.CategoryImages == nil {
		c.CategoryImages = map[string]string{}
	}
	if c.OutputPath == "" {
		c.OutputPath = defaultOutputPath
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}

	r := &c.Render
	if r.Width <= 0 {
		r.Width = defaultWidth
	}
	if r.Height <= 0 {
		r.Height = defaultHeight
	}
	if r.DateFormat == "" {
		r.DateFormat = datefmt.DefaultPattern
	}
	switch r.Theme {
	case "dark", "light":
		// ok
	default:
		// Unknown value; fall back to dark to avoid surprising output.
		r.Theme = defaultTheme
	}
	if _, err := time.ParseDuration(r.ImageTimeout); err != nil {
		r.ImageTimeout = defaultImageTimeout
	}
	if r.ImageRetries < 0 {
		r.ImageRetries = 0
	}
	if r.ImageHosts == nil {
		r.ImageHosts = []string{defaultImageHost}
	}
}

// ImageTimeoutDuration returns the parsed per-image load timeout.
func (r RenderConfig) ImageTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.ImageTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultImageTimeout)
	}
	return d
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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

	// Start from defaults so omitted booleans keep their default value.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".schedcard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
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
