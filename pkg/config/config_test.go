package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
}

// TestLoadDefaults verifies the listen port defaults to 3001.
func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "3001" || c.Addr() != ":3001" {
		t.Fatalf("unexpected port %q", c.Port)
	}
	if c.ProviderTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout %v", c.ProviderTimeout)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without credentials")
	}
}

// TestProductionRequiresSigningKey ensures the development key is rejected in
// production deployments.
func TestProductionRequiresSigningKey(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "production")
	t.Setenv("SIGNING_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for default signing key in production")
	}
	t.Setenv("SIGNING_KEY", "real-key")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestLoadFileWithEnvOverride checks the TOML file is read and environment
// variables take precedence over it.
func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
port = "4000"
database_url = "postgres://u:p@localhost/moods?sslmode=disable"
provider_timeout = "3s"

[spotify]
client_id = "file-id"
client_secret = "file-secret"
redirect_url = "http://example.com/cb"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("PORT", "5000")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Spotify.ClientID != "file-id" || c.Spotify.RedirectURL != "http://example.com/cb" {
		t.Fatalf("file values not applied: %+v", c.Spotify)
	}
	if c.Port != "5000" {
		t.Fatalf("env override not applied, port %q", c.Port)
	}
	if c.ProviderTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout %v", c.ProviderTimeout)
	}
}

func TestInvalidTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("PROVIDER_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

// TestListSettings checks comma-separated proxy and origin lists are split and
// trimmed.
func TestListSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 192.168.0.0/16,")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(c.TrustedProxies) != 2 || c.TrustedProxies[1] != "192.168.0.0/16" {
		t.Fatalf("unexpected proxies %q", c.TrustedProxies)
	}
	if len(c.CORSOrigins) != 1 || c.CORSOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected origins %q", c.CORSOrigins)
	}
}
