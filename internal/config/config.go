// Package config loads the examiz configuration: built-in defaults, then
// the TOML file, then EXAMIZ_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/store"
)

// Config is the whole application configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Client     ClientConfig     `toml:"client"`
	Paths      PathsConfig      `toml:"paths"`
	Log        LogConfig        `toml:"log"`
	Generation GenerationConfig `toml:"generation"`
	LLM        llm.Config       `toml:"llm"`
}

// ServerConfig is read by `examiz serve`.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	AutoGen         bool          `toml:"autogen"`
	AutoGenInterval time.Duration `toml:"autogen_interval"`
}

// ClientConfig is read by the commands that talk to a server.
type ClientConfig struct {
	ServerURL  string `toml:"server_url"`
	SessionKey string `toml:"session_key"`
}

// PathsConfig overrides the XDG database locations. Empty means default.
type PathsConfig struct {
	DB    string `toml:"db"`
	Cache string `toml:"cache"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// GenerationConfig tunes client-side generation jobs.
type GenerationConfig struct {
	Count         int           `toml:"count"`
	StageInterval time.Duration `toml:"stage_interval"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8420",
			AutoGenInterval: 4 * time.Hour,
		},
		Client: ClientConfig{
			ServerURL:  "http://127.0.0.1:8420",
			SessionKey: session.DefaultSessionKey,
		},
		Log:        LogConfig{Level: "warn"},
		Generation: GenerationConfig{Count: 5, StageInterval: 15 * time.Second},
		LLM:        llm.DefaultConfig(),
	}
}

// Load returns the defaults overlaid with the file at path and then the
// environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// LoadFile overlays the TOML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat config: %w", err)
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides fields from set environment variables, including the
// LLM settings.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for name, field := range map[string]*string{
		"EXAMIZ_ADDR":        &c.Server.Addr,
		"EXAMIZ_SERVER_URL":  &c.Client.ServerURL,
		"EXAMIZ_SESSION_KEY": &c.Client.SessionKey,
		"EXAMIZ_DB":          &c.Paths.DB,
		"EXAMIZ_CACHE":       &c.Paths.Cache,
		"EXAMIZ_LOG_LEVEL":   &c.Log.Level,
	} {
		if v := getenv(name); v != "" {
			*field = v
		}
	}
	c.LLM.ApplyEnv(getenv)
}

// Validate checks the values that do not depend on the command being run.
// LLM settings are validated only where a provider is built.
func (c Config) Validate() error {
	if c.Client.SessionKey == "" {
		return fmt.Errorf("client.session_key must not be empty")
	}
	if u, err := url.Parse(c.Client.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("client.server_url %q is not an absolute URL", c.Client.ServerURL)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Generation.Count <= 0 {
		return fmt.Errorf("generation.count must be positive, got %d", c.Generation.Count)
	}
	if c.Server.AutoGen && c.Server.AutoGenInterval <= 0 {
		return fmt.Errorf("server.autogen_interval must be positive")
	}
	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// DBPath returns the server database path, creating its directory.
func (c Config) DBPath() (string, error) {
	if c.Paths.DB != "" {
		return c.Paths.DB, store.EnsureDir(c.Paths.DB)
	}
	return store.DefaultDBPath()
}

// CachePath returns the device cache path, creating its directory.
func (c Config) CachePath() (string, error) {
	if c.Paths.Cache != "" {
		return c.Paths.Cache, store.EnsureDir(c.Paths.Cache)
	}
	return store.DefaultCachePath()
}
