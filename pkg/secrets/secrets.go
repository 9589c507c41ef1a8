// Package secrets loads the credentials a sync run needs from a secret
// directory, a dotenv file, the environment or the OS keyring.
package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Secret names, as used for files in the secret directory and users in the
// keyring.
const (
	AccessToken = "access-token"
	OAuthConfig = "eclipse-oauth-config"

	// KeyringService is the keyring service secrets are stored under.
	KeyringService = "glsync"
)

var (
	ErrNotFound           = errors.New("secret not found")
	ErrMissingAccessToken = errors.New("no platform access token configured")
)

// envKeys maps secret names to environment variable names.
var envKeys = map[string]string{
	AccessToken: "GLSYNC_ACCESS_TOKEN",
	OAuthConfig: "GLSYNC_OAUTH_CONFIG",
}

// Source looks up a secret by name. It returns ErrNotFound when it does not
// hold the secret.
type Source interface {
	Lookup(name string) (string, error)
	String() string
}

// Dir reads each secret from a file of the same name inside path.
type Dir string

func (d Dir) Lookup(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(string(d), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading secret %q: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (d Dir) String() string { return "dir:" + string(d) }

// EnvFile reads secrets from a dotenv file. A missing file holds no secrets.
type EnvFile string

func (f EnvFile) Lookup(name string) (string, error) {
	key, ok := envKeys[name]
	if !ok {
		return "", ErrNotFound
	}
	values, err := godotenv.Read(string(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading env file %s: %w", f, err)
	}
	if v := values[key]; v != "" {
		return v, nil
	}
	return "", ErrNotFound
}

func (f EnvFile) String() string { return "env-file:" + string(f) }

// Env reads secrets from the process environment.
type Env struct {
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func (e Env) Lookup(name string) (string, error) {
	key, ok := envKeys[name]
	if !ok {
		return "", ErrNotFound
	}
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(key); v != "" {
		return v, nil
	}
	return "", ErrNotFound
}

func (e Env) String() string { return "env" }

// KeyringSource reads secrets from a Keyring.
type KeyringSource struct {
	Keyring Keyring
}

func (k KeyringSource) Lookup(name string) (string, error) {
	return k.Keyring.Get(name)
}

func (k KeyringSource) String() string { return "keyring" }

// Chain asks each source in turn and returns the first hit.
type Chain []Source

func (c Chain) Lookup(name string) (string, error) {
	for _, src := range c {
		v, err := src.Lookup(name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s: %w", src, err)
		}
	}
	return "", ErrNotFound
}

func (c Chain) String() string {
	names := make([]string, len(c))
	for i, src := range c {
		names[i] = src.String()
	}
	return strings.Join(names, ",")
}

// Credentials are the secrets of a run.
type Credentials struct {
	AccessToken string
	// OAuthConfig is the raw registry OAuth configuration, empty when absent.
	OAuthConfig []byte
}

// Load reads the credentials from src. The access token is required.
func Load(src Source, logger *slog.Logger) (Credentials, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var creds Credentials

	token, err := src.Lookup(AccessToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return creds, ErrMissingAccessToken
		}
		return creds, err
	}
	creds.AccessToken = token

	oauth, err := src.Lookup(OAuthConfig)
	switch {
	case err == nil:
		creds.OAuthConfig = []byte(oauth)
	case errors.Is(err, ErrNotFound):
		logger.Warn("no registry oauth configuration, new users cannot be created", "sources", src.String())
	default:
		return creds, err
	}
	return creds, nil
}
