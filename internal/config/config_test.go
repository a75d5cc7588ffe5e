package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendLocal, cfg.Speech.Backend)
	assert.Equal(t, StoreFile, cfg.Store.Type)
	assert.Equal(t, 180, cfg.Speech.Local.WPM)
	assert.Equal(t, 250*time.Millisecond, cfg.Speech.Remote.Tick())
	assert.Equal(t, 2*time.Minute, cfg.Speech.Remote.Timeout())
	assert.Equal(t, time.Hour, cfg.Speech.Remote.CacheTTL())
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	tomlData := `
[speech]
backend = "remote"
voice = "alba"
speed = 1.25

[speech.remote]
url = "http://tts.lan:8000"
workers = 4
player = ["ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"]

[store]
type = "redis"

[store.redis]
addr = "redis.lan:6379"
db = 2

[chunk]
min_length = 40

[log]
level = "debug"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRemote, cfg.Speech.Backend)
	assert.Equal(t, "alba", cfg.Speech.Voice)
	assert.InEpsilon(t, 1.25, cfg.Speech.Speed, 0.001)
	assert.Equal(t, "http://tts.lan:8000", cfg.Speech.Remote.URL)
	assert.Equal(t, 4, cfg.Speech.Remote.Workers)
	assert.Equal(t, []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}, cfg.Speech.Remote.Player)
	assert.Equal(t, "redis.lan:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, 40, cfg.Chunk.MinLength)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults
	assert.Equal(t, "readaloud:", cfg.Store.Redis.Prefix)
	assert.Equal(t, 64, cfg.Speech.Remote.CacheSize)
	assert.Equal(t, 180, cfg.Speech.Local.WPM)
}

func TestLoadDefaultPathFromXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "readaloud"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readaloud", "config.toml"), []byte("[speech.local]\nwpm = 240\n"), 0644))

	assert.Equal(t, filepath.Join(dir, "readaloud", "config.toml"), DefaultPath())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Speech.Local.WPM)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[speech\nbackend ="), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Speech.Backend = "browser" }},
		{"speed too low", func(c *Config) { c.Speech.Speed = 0.4 }},
		{"speed too high", func(c *Config) { c.Speech.Speed = 2.5 }},
		{"zero workers", func(c *Config) { c.Speech.Remote.Workers = 0 }},
		{"zero wpm", func(c *Config) { c.Speech.Local.WPM = 0 }},
		{"negative cache", func(c *Config) { c.Speech.Remote.CacheSize = -1 }},
		{"remote without url", func(c *Config) { c.Speech.Backend = BackendRemote; c.Speech.Remote.URL = "" }},
		{"unknown store", func(c *Config) { c.Store.Type = "sqlite" }},
		{"redis without addr", func(c *Config) { c.Store.Type = StoreRedis; c.Store.Redis.Addr = "" }},
		{"nats without url", func(c *Config) { c.Store.Type = StoreNATS; c.Store.NATS.URL = "" }},
		{"negative min length", func(c *Config) { c.Chunk.MinLength = -5 }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidateAcceptsSpeedBounds(t *testing.T) {
	for _, speed := range []float64{0.5, 2.0} {
		cfg := Default()
		cfg.Speech.Speed = speed
		assert.NoError(t, cfg.Validate())
	}
}
