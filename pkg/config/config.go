// Package config reads the optional run configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Config holds the settings that are not secrets. Command-line flags
// override values read from a file, which override the defaults.
type Config struct {
	// Host is the base URL of the GitLab instance.
	Host string `yaml:"host" toml:"host"`
	// Provider is the OAuth provider new accounts are linked to.
	Provider      string `yaml:"provider" toml:"provider"`
	RootGroupName string `yaml:"root_group_name" toml:"root_group_name"`
	RootGroupPath string `yaml:"root_group_path" toml:"root_group_path"`
	// BotSite selects the bot accounts that apply to this platform.
	BotSite  string   `yaml:"bot_site" toml:"bot_site"`
	Registry Registry `yaml:"registry" toml:"registry"`
	Limits   Limits   `yaml:"limits" toml:"limits"`
}

type Registry struct {
	ProjectsURL string `yaml:"projects_url" toml:"projects_url"`
	AccountsURL string `yaml:"accounts_url" toml:"accounts_url"`
	BotsURL     string `yaml:"bots_url" toml:"bots_url"`
}

type Limits struct {
	// PlatformRPS and RegistryRPS are requests per second; zero disables the limit.
	PlatformRPS    float64 `yaml:"platform_rps" toml:"platform_rps"`
	PlatformBurst  int     `yaml:"platform_burst" toml:"platform_burst"`
	RegistryRPS    float64 `yaml:"registry_rps" toml:"registry_rps"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Host:          "https://gitlab.eclipse.org",
		Provider:      "oauth2_generic",
		RootGroupName: "Eclipse",
		RootGroupPath: "eclipse",
		BotSite:       "gitlab.eclipse.org",
		Registry: Registry{
			ProjectsURL: "https://projects.eclipse.org/api/projects",
			AccountsURL: "https://api.eclipse.org/account/profile",
			BotsURL:     "https://api.eclipse.org/bots",
		},
		Limits: Limits{
			PlatformRPS:    10,
			PlatformBurst:  5,
			RegistryRPS:    5,
			TimeoutSeconds: 30,
		},
	}
}

// Timeout returns the HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Limits.TimeoutSeconds) * time.Second
}

// Load reads path over the defaults. The format follows the file extension:
// .yaml, .yml or .toml. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parsing yaml config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing toml config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.RootGroupPath == "" {
		errs = append(errs, errors.New("root_group_path is required"))
	}
	if c.Limits.PlatformRPS < 0 || c.Limits.RegistryRPS < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	return errors.Join(errs...)
}
