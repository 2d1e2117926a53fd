package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	blob := `
api_base_url = "http://news.local:8080"
poll_interval = "250ms"

[[sources]]
key = "fujian"
name = "福建日报"
filters = ["noise"]

[[sources]]
key = "hainan"
name = "海南日报"
enabled = false

[filters.noise]
exclude_patterns = ["^广告"]
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(blob), 0o644))

	conf, err := Read(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "http://news.local:8080", conf.APIBaseURL)
	assert.Equal(t, 250*time.Millisecond, conf.PollInterval.Duration)
	assert.Equal(t, time.Second, conf.ReloadDelay.Duration, "unset keys keep defaults")
	assert.Equal(t, []string{"fujian"}, conf.SourceKeys())

	_, ok := conf.Source("hainan")
	assert.False(t, ok, "disabled source must not resolve")
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "no base url", mutate: func(c *Config) { c.APIBaseURL = "" }},
		{name: "zero interval", mutate: func(c *Config) { c.PollInterval = Duration{} }},
		{name: "reserved key", mutate: func(c *Config) { c.Sources[0].Key = "all" }},
		{name: "duplicate key", mutate: func(c *Config) { c.Sources[1].Key = c.Sources[0].Key }},
		{name: "unknown filter", mutate: func(c *Config) { c.Sources[0].FilterNames = []string{"nope"} }},
		{name: "no sources", mutate: func(c *Config) { c.Sources = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := Default()
			tt.mutate(&conf)
			err := conf.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.toml")
	conf := Default()
	conf.PollInterval = Duration{2 * time.Second}

	require.NoError(t, Write(cfgPath, conf))

	got, err := Read(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, got.PollInterval.Duration)
	assert.Equal(t, conf.SourceKeys(), got.SourceKeys())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://override:9000")
	conf := Default()
	ApplyEnv(&conf)
	assert.Equal(t, "http://override:9000", conf.APIBaseURL)
}
