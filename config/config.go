package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/scipunch/newsdesk/cache"
)

const baseCfgPath = "newsdesk/config.toml"

// EnvAPIURL overrides Config.APIBaseURL when set.
const EnvAPIURL = "NEWSDESK_API_URL"

type Config struct {
	APIBaseURL     string            `toml:"api_base_url"`
	SessionPath    string            `toml:"session_path"`    // SQLite file holding per-session state
	PollInterval   Duration          `toml:"poll_interval"`   // Crawl status poll period
	ReloadDelay    Duration          `toml:"reload_delay"`    // Wait after a completed crawl before reloading
	RequestTimeout Duration          `toml:"request_timeout"` // Per request HTTP timeout
	SessionTTL     Duration          `toml:"session_ttl"`     // Sessions idle longer than this are pruned
	LogLimit       int               `toml:"log_limit"`       // Visible crawl log lines
	Sources        []SourceConfig    `toml:"sources"`
	Filters        map[string]Filter `toml:"filters"` // Named title filters that can be referenced by sources
}

type SourceConfig struct {
	Key         string   `toml:"key"`
	Name        string   `toml:"name"`
	Enabled     *bool    `toml:"enabled"` // Defaults to true if not set
	FilterNames []string `toml:"filters"`
}

// Filter defines rules for hiding news items by title
type Filter struct {
	MinLength       int      `toml:"min_length"`       // Minimum character count of the title (0 = no limit)
	ExcludePatterns []string `toml:"exclude_patterns"` // Regex patterns matched against title and translated title
}

// Duration wraps time.Duration so it can be written as "1s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsEnabled returns true if the source is enabled (defaults to true if not explicitly set)
func (s SourceConfig) IsEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// SourceKeys returns keys of enabled sources in configured order.
func (c Config) SourceKeys() []string {
	var keys []string
	for _, s := range c.Sources {
		if s.IsEnabled() {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// Source looks up an enabled source by key.
func (c Config) Source(key string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Key == key && s.IsEnabled() {
			return s, true
		}
	}
	return SourceConfig{}, false
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return conf, nil
}

// ApplyEnv loads .env files from the working directory and applies
// environment overrides on top of the file config.
func ApplyEnv(conf *Config) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to load .env", "error", err)
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		conf.APIBaseURL = v
	}
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.ReloadDelay.Duration < 0 {
		return fmt.Errorf("reload_delay must not be negative, got %s", c.ReloadDelay)
	}
	if len(c.SourceKeys()) == 0 {
		return fmt.Errorf("at least one enabled source is required")
	}
	seen := make(map[string]bool)
	for _, s := range c.Sources {
		if s.Key == "" || s.Key == "all" {
			return fmt.Errorf("invalid source key %q", s.Key)
		}
		if seen[s.Key] {
			return fmt.Errorf("duplicate source key %q", s.Key)
		}
		seen[s.Key] = true
		for _, name := range s.FilterNames {
			if _, ok := c.Filters[name]; !ok {
				return fmt.Errorf("source %q references unknown filter %q", s.Key, name)
			}
		}
	}
	return nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

func Default() Config {
	return Config{
		APIBaseURL:     "http://127.0.0.1:5001",
		SessionPath:    cache.DefaultStorePath(),
		PollInterval:   Duration{time.Second},
		ReloadDelay:    Duration{time.Second},
		RequestTimeout: Duration{30 * time.Second},
		SessionTTL:     Duration{24 * time.Hour},
		LogLimit:       50,
		Sources: []SourceConfig{
			{Key: "fujian", Name: "福建日报"},
			{Key: "hainan", Name: "海南日报"},
			{Key: "nanfang", Name: "南方日报"},
			{Key: "guangzhou", Name: "广州日报"},
			{Key: "guangxi", Name: "广西日报"},
		},
		Filters: map[string]Filter{},
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config fie")
}
