package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvCalendarURL names the environment variable that overrides CalendarURL.
const EnvCalendarURL = "CALENDAR_URL"

const (
	defaultListen              = "127.0.0.1:8080"
	defaultLocale              = "ja-JP"
	defaultRefreshCron         = "*/5 * * * *"
	defaultFetchTimeoutSeconds = 15
	defaultLogLevel            = "info"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the agenda page and the proxy.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for day boundaries and labels
	// (e.g. "Asia/Tokyo"). Empty means the system local timezone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale is a BCP 47 tag selecting label and message language.
	Locale string `yaml:"locale" json:"locale"`

	// CalendarURL is the upstream ICS document. CALENDAR_URL overrides it.
	CalendarURL string `yaml:"calendar_url,omitempty" json:"calendar_url,omitempty"`

	// RefreshCron is a cron-style schedule string for re-fetching the feed.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeoutSeconds bounds every upstream fetch.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		Locale:              defaultLocale,
		RefreshCron:         defaultRefreshCron,
		FetchTimeoutSeconds: defaultFetchTimeoutSeconds,
		LogLevel:            defaultLogLevel,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.CalendarURL = strings.TrimSpace(c.CalendarURL)
}

// FetchTimeout returns FetchTimeoutSeconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local when it is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ApplyEnv overrides file values with environment values. lookup is
// os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvCalendarURL); ok && strings.TrimSpace(v) != "" {
		c.CalendarURL = strings.TrimSpace(v)
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If path is empty, the defaults are returned.
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
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

// Save writes cfg to path as commented YAML with 0600 perms, replacing any
// existing file atomically. CalendarURL is never written: feed URLs usually
// carry a private token, so they belong in CALENDAR_URL or a hand edit.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	out := *cfg
	out.Normalize()
	out.CalendarURL = ""

	data, err := encode(&out)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

func encode(cfg *Config) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(cfg); err != nil {
		return nil, err
	}
	node.HeadComment = "todaycal configuration.\n" +
		"calendar_url is not saved here; set " + EnvCalendarURL + " or add it by hand."

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never observe a partial config.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
