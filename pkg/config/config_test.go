package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "glsync.yaml", `
host: https://gitlab.example.org
root_group_path: example
registry:
  bots_url: https://bots.example.org
limits:
  platform_rps: 2.5
`)
	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "https://gitlab.example.org", cfg.Host)
	assert.Equal(t, "example", cfg.RootGroupPath)
	assert.Equal(t, "Eclipse", cfg.RootGroupName)
	assert.Equal(t, "https://bots.example.org", cfg.Registry.BotsURL)
	assert.Equal(t, "https://projects.eclipse.org/api/projects", cfg.Registry.ProjectsURL)
	assert.Equal(t, 2.5, cfg.Limits.PlatformRPS)
	assert.Equal(t, 5, cfg.Limits.PlatformBurst)
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := Load(write(t, "glsync.yml", ""))
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "glsync.toml", `
provider = "eclipse"
bot_site = "gitlab.example.org"

[limits]
registry_rps = 1.0
timeout_seconds = 5
`)
	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "eclipse", cfg.Provider)
	assert.Equal(t, "gitlab.example.org", cfg.BotSite)
	assert.Equal(t, 1.0, cfg.Limits.RegistryRPS)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(write(t, "glsync.yaml", "hots: typo\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "glsync.toml", "hots = \"typo\"\n"))
	assert.Error(t, err)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(write(t, "glsync.json", "{}"))
	assert.IsError(t, err, ErrUnsupportedFormat)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Host = ""
	cfg.Limits.RegistryRPS = -1
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
	assert.Contains(t, err.Error(), "rate limits must not be negative")
}
