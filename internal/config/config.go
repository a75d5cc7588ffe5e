// Package config loads the readaloud TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const fileName = "config.toml"

// Backend and store names.
const (
	BackendRemote = "remote"
	BackendLocal  = "local"

	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreNATS   = "nats"
	StoreMemory = "memory"
)

var ErrInvalid = errors.New("invalid configuration")

// RemoteConfig holds the synthesis service settings.
type RemoteConfig struct {
	URL             string   `toml:"url"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	Language        string   `toml:"language"`
	Temperature     float64  `toml:"temperature"`
	CacheSize       int      `toml:"cache_size"`
	CacheTTLSeconds int      `toml:"cache_ttl_seconds"`
	Prefetch        int      `toml:"prefetch"`
	Workers         int      `toml:"workers"`
	Player          []string `toml:"player"`
	TickMillis      int      `toml:"tick_millis"`
}

func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (r RemoteConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

func (r RemoteConfig) Tick() time.Duration {
	return time.Duration(r.TickMillis) * time.Millisecond
}

// LocalConfig holds the word-paced engine settings.
type LocalConfig struct {
	Command []string `toml:"command"`
	WPM     int      `toml:"wpm"`
}

type SpeechConfig struct {
	Backend string       `toml:"backend"`
	Voice   string       `toml:"voice"`
	Speed   float64      `toml:"speed"`
	Remote  RemoteConfig `toml:"remote"`
	Local   LocalConfig  `toml:"local"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type NATSConfig struct {
	URL    string `toml:"url"`
	Bucket string `toml:"bucket"`
}

type StoreConfig struct {
	Type  string      `toml:"type"`
	Dir   string      `toml:"dir"`
	Redis RedisConfig `toml:"redis"`
	NATS  NATSConfig  `toml:"nats"`
}

type ChunkConfig struct {
	MinLength int `toml:"min_length"`
}

type LogConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

type ServerConfig struct {
	Addr        string `toml:"addr"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// Config is the root configuration structure.
type Config struct {
	Speech SpeechConfig `toml:"speech"`
	Store  StoreConfig  `toml:"store"`
	Chunk  ChunkConfig  `toml:"chunk"`
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Speech: SpeechConfig{
			Backend: BackendLocal,
			Speed:   1.0,
			Remote: RemoteConfig{
				URL:             "http://localhost:8000",
				TimeoutSeconds:  120,
				Language:        "en",
				Temperature:     0.75,
				CacheSize:       64,
				CacheTTLSeconds: 3600,
				Prefetch:        2,
				Workers:         2,
				TickMillis:      250,
			},
			Local: LocalConfig{
				WPM: 180,
			},
		},
		Store: StoreConfig{
			Type: StoreFile,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "readaloud:",
			},
			NATS: NATSConfig{
				URL:    "nats://127.0.0.1:4222",
				Bucket: "readaloud",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 50,
		},
	}
}

// Dir returns XDG_CONFIG_HOME/readaloud or ~/.config/readaloud
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "readaloud")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "readaloud")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads path over the defaults. An empty path means DefaultPath, which
// may be missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Speech.Backend {
	case BackendRemote, BackendLocal:
	default:
		problems = append(problems, fmt.Sprintf("speech.backend %q is not one of remote, local", c.Speech.Backend))
	}
	if c.Speech.Speed < 0.5 || c.Speech.Speed > 2.0 {
		problems = append(problems, fmt.Sprintf("speech.speed %.2f is outside 0.5-2.0", c.Speech.Speed))
	}
	if c.Speech.Remote.Workers <= 0 {
		problems = append(problems, "speech.remote.workers must be positive")
	}
	if c.Speech.Remote.TimeoutSeconds <= 0 {
		problems = append(problems, "speech.remote.timeout_seconds must be positive")
	}
	if c.Speech.Remote.CacheSize < 0 || c.Speech.Remote.Prefetch < 0 {
		problems = append(problems, "speech.remote cache_size and prefetch cannot be negative")
	}
	if c.Speech.Backend == BackendRemote && c.Speech.Remote.URL == "" {
		problems = append(problems, "speech.remote.url is required for the remote backend")
	}
	if c.Speech.Local.WPM <= 0 {
		problems = append(problems, "speech.local.wpm must be positive")
	}

	switch c.Store.Type {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			problems = append(problems, "store.redis.addr is required")
		}
	case StoreNATS:
		if c.Store.NATS.URL == "" {
			problems = append(problems, "store.nats.url is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.type %q is not one of file, redis, nats, memory", c.Store.Type))
	}

	if c.Chunk.MinLength < 0 {
		problems = append(problems, "chunk.min_length cannot be negative")
	}
	if c.Server.MaxUploadMB <= 0 {
		problems = append(problems, "server.max_upload_mb must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
