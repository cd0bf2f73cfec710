package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lunarcal/internal/model"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// Provider names accepted in AstroConfig.
const (
	ProviderLocal = "local"
	ProviderUSNO  = "usno"
	ProviderNone  = "none"
)

// AstroConfig selects the rise/set providers.
type AstroConfig struct {
	// Sun and Moon pick the provider per body: "local", "usno" or "none".
	Sun  string `yaml:"sun" json:"sun"`
	Moon string `yaml:"moon" json:"moon"`

	// USNOURL overrides the USNO endpoint.
	USNOURL string `yaml:"usno_url,omitempty" json:"usno_url,omitempty"`

	// Concurrency caps in-flight sub-queries of one resolution.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// TimeoutSeconds bounds each remote request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone whose midnights delimit calendar days.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Year pins the marker year. 0 follows the current year.
	Year int `yaml:"year" json:"year"`

	// Mode selects the subdivision:
	//   - "phase" (default): 7 days between consecutive phases
	//   - "lunation": 28 days between consecutive new moons
	Mode string `yaml:"mode" json:"mode"`

	// Location is the default observer location used until geolocation
	// or an explicit override replaces it.
	Location model.Location `yaml:"location" json:"location"`

	// Geolocate enables the one-shot IP geolocation read at startup.
	Geolocate    bool   `yaml:"geolocate" json:"geolocate"`
	GeolocateURL string `yaml:"geolocate_url,omitempty" json:"geolocate_url,omitempty"`

	// PhaseFeedURL and NewMoonFeedURL are URL templates; "{year}" is
	// replaced with the marker year.
	PhaseFeedURL   string `yaml:"phase_feed_url" json:"phase_feed_url"`
	NewMoonFeedURL string `yaml:"new_moon_feed_url" json:"new_moon_feed_url"`

	Astro AstroConfig `yaml:"astro" json:"astro"`

	// RefreshCron is a cron-style schedule string (e.g. "5 0 * * *")
	// used for periodic refresh in the display timezone.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var defaultLocation = model.Location{Lat: 55.7558, Lon: 37.6173}

const (
	defaultPhaseFeedURL   = "https://raw.githubusercontent.com/CraigChamberlain/moon-data/master/api/moon-phase-data/{year}/index.json"
	defaultNewMoonFeedURL = "https://raw.githubusercontent.com/CraigChamberlain/moon-data/master/api/new-moon-data/{year}/index.json"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "Europe/Moscow",
		Year:           0,
		Mode:           "phase",
		Location:       defaultLocation,
		Geolocate:      true,
		PhaseFeedURL:   defaultPhaseFeedURL,
		NewMoonFeedURL: defaultNewMoonFeedURL,
		Astro: AstroConfig{
			Sun:            ProviderLocal,
			Moon:           ProviderLocal,
			Concurrency:    64,
			TimeoutSeconds: 15,
		},
		RefreshCron: "5 0 * * *",
		LogLevel:    "info",
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Moscow"
	}
	if c.Year < 0 {
		c.Year = 0
	}
	switch c.Mode {
	case "phase", "lunation":
		// ok
	default:
		// Unknown value; fall back to phase subdivision.
		c.Mode = "phase"
	}
	if !c.Location.Valid() {
		c.Location = defaultLocation
	}
	if c.PhaseFeedURL == "" {
		c.PhaseFeedURL = defaultPhaseFeedURL
	}
	if c.NewMoonFeedURL == "" {
		c.NewMoonFeedURL = defaultNewMoonFeedURL
	}
	c.Astro.Sun = normalizeProvider(c.Astro.Sun)
	c.Astro.Moon = normalizeProvider(c.Astro.Moon)
	if c.Astro.Concurrency <= 0 {
		c.Astro.Concurrency = 64
	}
	if c.Astro.TimeoutSeconds <= 0 {
		c.Astro.TimeoutSeconds = 15
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "5 0 * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func normalizeProvider(p string) string {
	switch p {
	case ProviderLocal, ProviderUSNO, ProviderNone:
		return p
	default:
		return ProviderLocal
	}
}

// Timeout returns the per-request timeout for remote lookups.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Astro.TimeoutSeconds) * time.Second
}

// TimeLocation resolves Timezone, falling back to time.Local.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
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

	tmp, err := os.CreateTemp(dir, ".lunarcal-config-*.tmp")
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
