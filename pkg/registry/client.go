// Package registry talks to the project registry: project role lists, bot
// accounts and account profiles.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mscno/glsync/pkg/model"
	"github.com/tomnomnom/linkheader"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultProjectsURL = "https://projects.eclipse.org/api/projects"
	DefaultAccountsURL = "https://api.eclipse.org/account/profile"
	DefaultBotsURL     = "https://api.eclipse.org/bots"
)

var (
	ErrUserNotFound    = errors.New("user not found in registry")
	ErrBotsUnavailable = errors.New("could not retrieve bots from registry")
	ErrNoCredentials   = errors.New("no oauth configuration for profile lookups")
)

// TokenError is returned when the registry access token cannot be obtained.
// It is fatal for a sync run.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string { return "registry access token: " + e.Err.Error() }
func (e *TokenError) Unwrap() error { return e.Err }
func (e *TokenError) Fatal() bool   { return true }

// Config holds configuration for creating a new Client.
type Config struct {
	ProjectsURL string
	AccountsURL string
	BotsURL     string
	OAuth       *OAuthConfig
	// TestMode returns a fixed project payload instead of calling the API.
	TestMode   bool
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the registry API client.
type Client struct {
	projectsURL string
	accountsURL string
	botsURL     string
	testMode    bool
	httpClient  *http.Client
	authClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a registry client. Profile lookups fail with
// ErrNoCredentials when no OAuth configuration is given.
func NewClient(config Config) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.ProjectsURL == "" {
		config.ProjectsURL = DefaultProjectsURL
	}
	if config.AccountsURL == "" {
		config.AccountsURL = DefaultAccountsURL
	}
	if config.BotsURL == "" {
		config.BotsURL = DefaultBotsURL
	}

	c := &Client{
		projectsURL: config.ProjectsURL,
		accountsURL: strings.TrimSuffix(config.AccountsURL, "/"),
		botsURL:     config.BotsURL,
		testMode:    config.TestMode,
		httpClient:  config.HTTPClient,
		logger:      config.Logger,
	}
	if config.OAuth != nil {
		c.authClient = config.OAuth.client(config.HTTPClient)
	}
	return c
}

// FetchProjects returns every project, following Link headers until the last
// page.
func (c *Client) FetchProjects(ctx context.Context) ([]model.ProjectRecord, error) {
	if c.testMode {
		c.logger.Info("registry test mode active, using stub project data")
		return stubProjects(), nil
	}

	var all []model.ProjectRecord
	next := c.projectsURL
	for next != "" {
		c.logger.Debug("loading registry page", "url", next)
		var page []model.ProjectRecord
		resp, err := c.getJSON(ctx, c.httpClient, next, &page)
		if err != nil {
			return nil, fmt.Errorf("fetching projects from %s: %w", next, err)
		}
		all = append(all, page...)
		next = nextLink(resp.Header.Get("Link"))
	}
	return all, nil
}

// FetchBots returns the raw bot records. An empty result is an error.
func (c *Client) FetchBots(ctx context.Context) ([]model.BotRecord, error) {
	var records []model.BotRecord
	if _, err := c.getJSON(ctx, c.httpClient, c.botsURL, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBotsUnavailable, err)
	}
	if len(records) == 0 {
		return nil, ErrBotsUnavailable
	}
	return records, nil
}

// ResolveUser looks up the registry profile for handle.
func (c *Client) ResolveUser(ctx context.Context, handle string) (model.UserProfile, error) {
	if c.authClient == nil {
		return model.UserProfile{}, ErrNoCredentials
	}
	var profile model.UserProfile
	_, err := c.getJSON(ctx, c.authClient, c.accountsURL+"/"+url.PathEscape(handle), &profile)
	if err != nil {
		var tokenErr *TokenError
		var statusErr *statusError
		switch {
		case errors.As(err, &tokenErr):
			return model.UserProfile{}, tokenErr
		case errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound:
			return model.UserProfile{}, ErrUserNotFound
		}
		return model.UserProfile{}, err
	}
	if profile.Name == "" && profile.UID == "" {
		return model.UserProfile{}, ErrUserNotFound
	}
	return profile, nil
}

type statusError struct {
	status string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("registry error: %s: %s", e.status, e.body)
}

func (c *Client) getJSON(ctx context.Context, client *http.Client, u string, v any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{status: resp.Status, code: resp.StatusCode, body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

func nextLink(header string) string {
	if header == "" {
		return ""
	}
	links := linkheader.Parse(header)
	var self, last string
	for _, l := range links {
		switch l.Rel {
		case "self":
			self = l.URL
		case "last":
			last = l.URL
		}
	}
	if self != "" && self == last {
		return ""
	}
	for _, l := range links.FilterByRel("next") {
		return l.URL
	}
	return ""
}

// OAuthConfig is the client-credentials configuration for profile lookups.
type OAuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Endpoint     string `json:"endpoint"`
	Scope        string `json:"scope"`
	// Timeout is how many seconds before its expiry a token is renewed.
	Timeout int `json:"timeout"`
}

// ParseOAuthConfig parses the registry OAuth secret, {"oauth": {...}}.
func ParseOAuthConfig(data []byte) (*OAuthConfig, error) {
	var wrapper struct {
		OAuth *OAuthConfig `json:"oauth"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid oauth config: %w", err)
	}
	if wrapper.OAuth == nil || wrapper.OAuth.ClientID == "" || wrapper.OAuth.Endpoint == "" {
		return nil, fmt.Errorf("invalid oauth config: client_id and endpoint are required")
	}
	return wrapper.OAuth, nil
}

func (o *OAuthConfig) client(base *http.Client) *http.Client {
	cc := &clientcredentials.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		TokenURL:     strings.TrimSuffix(o.Endpoint, "/") + "/oauth2/token",
		Scopes:       strings.Fields(o.Scope),
	}
	// token requests go through the same (throttled) transport
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	var src oauth2.TokenSource = tokenSource{ctx: ctx, config: cc}
	if o.Timeout > 0 {
		src = oauth2.ReuseTokenSourceWithExpiry(nil, src, time.Duration(o.Timeout)*time.Second)
	} else {
		src = oauth2.ReuseTokenSource(nil, src)
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: base.Transport},
		Timeout:   base.Timeout,
	}
}

// tokenSource fetches a new client-credentials token on every call and marks
// any failure, including an unreachable endpoint, as a TokenError.
type tokenSource struct {
	ctx    context.Context
	config *clientcredentials.Config
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.config.Token(s.ctx)
	if err != nil {
		return nil, &TokenError{Err: err}
	}
	return tok, nil
}
