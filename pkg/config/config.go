// Package config loads the runtime configuration for Mood-Playlist-Go.
// Values come from an optional TOML file (named by CONFIG_FILE) and are then
// overridden by environment variables, so deployments can keep secrets out of
// the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const devSigningKey = "dev-signing-key"

// Config holds every setting needed by cmd/web.
type Config struct {
	Env  string `toml:"env"`
	Port string `toml:"port"`

	// DatabaseURL is either a SQLite file path (":memory:" allowed) or a
	// postgres:// connection string.
	DatabaseURL string `toml:"database_url"`

	Spotify SpotifyConfig `toml:"spotify"`
	Log     LogConfig     `toml:"log"`

	SigningKey         string        `toml:"signing_key"`
	ProviderTimeout    time.Duration `toml:"-"`
	RateLimitPerMinute int           `toml:"rate_limit_per_minute"`

	// TrustedProxies lists the reverse proxy IPs or CIDR ranges whose
	// X-Forwarded-For header identifies the client for rate limiting.
	TrustedProxies []string `toml:"trusted_proxies"`
	// CORSOrigins lists the browser origins allowed to make credentialed
	// requests. When empty any origin may call the API without credentials.
	CORSOrigins []string `toml:"cors_origins"`

	// ProviderTimeoutRaw is the TOML representation of ProviderTimeout.
	ProviderTimeoutRaw string `toml:"provider_timeout"`
}

// SpotifyConfig contains the OAuth client registration.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`
}

// LogConfig controls logrus output. Format is "json" or "text"; when empty
// production deployments log JSON and everything else logs text.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config populated with development defaults.
func Default() *Config {
	return &Config{
		Env:         "development",
		Port:        "3001",
		DatabaseURL: "moodplaylist.db",
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:3001/api/auth/callback",
		},
		Log:                LogConfig{Level: "info"},
		SigningKey:         devSigningKey,
		ProviderTimeout:    10 * time.Second,
		RateLimitPerMinute: 30,
	}
}

// Load builds the configuration from defaults, the optional TOML file and the
// environment, then validates it.
func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.ProviderTimeoutRaw != "" {
		d, err := time.ParseDuration(c.ProviderTimeoutRaw)
		if err != nil {
			return fmt.Errorf("invalid provider_timeout: %w", err)
		}
		c.ProviderTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Env, "ENV")
	setString(&c.Port, "PORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setString(&c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	setString(&c.Spotify.RedirectURL, "SPOTIFY_REDIRECT_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.SigningKey, "SIGNING_KEY")
	setList(&c.TrustedProxies, "TRUSTED_PROXIES")
	setList(&c.CORSOrigins, "CORS_ORIGINS")

	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
		}
		c.ProviderTimeout = d
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		c.RateLimitPerMinute = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList replaces dst with the comma-separated entries of key, if set.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

// Production reports whether ENV names a production deployment.
func (c *Config) Production() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// Validate checks that the required settings are present.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}
	if c.Spotify.RedirectURL == "" {
		return errors.New("SPOTIFY_REDIRECT_URL must be set")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.SigningKey == "" || (c.Production() && c.SigningKey == devSigningKey) {
		return errors.New("SIGNING_KEY must be set in production")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.Port)
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
