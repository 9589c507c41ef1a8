package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/mscno/glsync/pkg/model"
	"golang.org/x/oauth2"
)

func newRegistryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		self := fmt.Sprintf("%s/api/projects?page=%s", srv.URL, page)
		last := srv.URL + "/api/projects?page=2"
		switch page {
		case "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="self", <%s/api/projects?page=2>; rel="next", <%s>; rel="last"`, self, srv.URL, last))
			_ = json.NewEncoder(w).Encode([]model.ProjectRecord{{ProjectID: "rt.jetty", ShortProjectID: "jetty"}})
		case "2":
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="self", <%s>; rel="last"`, self, last))
			_ = json.NewEncoder(w).Encode([]model.ProjectRecord{{ProjectID: "ee4j.jersey", ShortProjectID: "jersey"}})
		}
	})
	mux.HandleFunc("/bots", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"projectId":"rt.jetty","gitlab.eclipse.org":{"username":"jetty-bot"}}]`))
	})
	mux.HandleFunc("/empty-bots", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		id, secret, _ := r.BasicAuth()
		if id == "" {
			id, secret = r.Form.Get("client_id"), r.Form.Get("client_secret")
		}
		if id != "glsync" || secret != "s3cret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/account/profile/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/account/profile/alice":
			_, _ = w.Write([]byte(`{"uid":"1001","name":"alice","first_name":"Alice","last_name":"Liddell","mail":"alice@example.org"}`))
		default:
			http.NotFound(w, r)
		}
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchProjectsFollowsLinks(t *testing.T) {
	srv := newRegistryServer(t)
	c := NewClient(Config{ProjectsURL: srv.URL + "/api/projects"})

	projects, err := c.FetchProjects(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, len(projects))
	assert.Equal(t, "rt.jetty", projects[0].ProjectID)
	assert.Equal(t, "ee4j.jersey", projects[1].ProjectID)
}

func TestFetchProjectsTestMode(t *testing.T) {
	c := NewClient(Config{ProjectsURL: "http://127.0.0.1:1/unreachable", TestMode: true})

	projects, err := c.FetchProjects(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(projects))
	assert.Equal(t, "spider.pig", projects[0].ProjectID)
	assert.Equal(t, 2, len(projects[0].ProjectLeads))
}

func TestFetchProjectsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(Config{ProjectsURL: srv.URL}).FetchProjects(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFetchBots(t *testing.T) {
	srv := newRegistryServer(t)

	records, err := NewClient(Config{BotsURL: srv.URL + "/bots"}).FetchBots(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(records))

	_, err = NewClient(Config{BotsURL: srv.URL + "/empty-bots"}).FetchBots(context.Background())
	assert.IsError(t, err, ErrBotsUnavailable)

	_, err = NewClient(Config{BotsURL: srv.URL + "/missing"}).FetchBots(context.Background())
	assert.IsError(t, err, ErrBotsUnavailable)
}

func TestResolveUser(t *testing.T) {
	srv := newRegistryServer(t)
	c := NewClient(Config{
		AccountsURL: srv.URL + "/account/profile/",
		OAuth:       &OAuthConfig{ClientID: "glsync", ClientSecret: "s3cret", Endpoint: srv.URL},
	})

	profile, err := c.ResolveUser(context.Background(), "alice")
	assert.NoError(t, err)
	assert.Equal(t, "Alice Liddell", profile.DisplayName())
	assert.Equal(t, "alice@example.org", profile.Mail)
	assert.Equal(t, "1001", profile.UID)

	_, err = c.ResolveUser(context.Background(), "nobody")
	assert.IsError(t, err, ErrUserNotFound)
}

func TestResolveUserTokenFailureIsFatal(t *testing.T) {
	srv := newRegistryServer(t)
	c := NewClient(Config{
		AccountsURL: srv.URL + "/account/profile",
		OAuth:       &OAuthConfig{ClientID: "glsync", ClientSecret: "wrong", Endpoint: srv.URL},
	})

	_, err := c.ResolveUser(context.Background(), "alice")
	var tokenErr *TokenError
	assert.True(t, errors.As(err, &tokenErr))
	assert.True(t, tokenErr.Fatal())
}

func TestResolveUserUnreachableTokenEndpointIsFatal(t *testing.T) {
	srv := newRegistryServer(t)
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	c := NewClient(Config{
		AccountsURL: srv.URL + "/account/profile",
		OAuth:       &OAuthConfig{ClientID: "glsync", ClientSecret: "s3cret", Endpoint: down.URL},
	})

	_, err := c.ResolveUser(context.Background(), "alice")
	var tokenErr *TokenError
	assert.True(t, errors.As(err, &tokenErr))
	assert.True(t, tokenErr.Fatal())
	assert.NotIsError(t, err, ErrUserNotFound)
}

func TestTokenRenewedBeforeExpiry(t *testing.T) {
	var issued atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":60}`, n)
	}))
	t.Cleanup(srv.Close)

	client := (&OAuthConfig{ClientID: "glsync", Endpoint: srv.URL, Timeout: 120}).client(http.DefaultClient)
	src := client.Transport.(*oauth2.Transport).Source
	for range 2 {
		_, err := src.Token()
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(2), issued.Load())

	client = (&OAuthConfig{ClientID: "glsync", Endpoint: srv.URL}).client(http.DefaultClient)
	src = client.Transport.(*oauth2.Transport).Source
	for range 2 {
		_, err := src.Token()
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(3), issued.Load())
}

func TestResolveUserWithoutCredentials(t *testing.T) {
	_, err := NewClient(Config{}).ResolveUser(context.Background(), "alice")
	assert.IsError(t, err, ErrNoCredentials)
}

func TestParseOAuthConfig(t *testing.T) {
	cfg, err := ParseOAuthConfig([]byte(`{"oauth":{"client_id":"id","client_secret":"secret","endpoint":"https://accounts.example.org","scope":"eclipsefdn_view_all_profiles"}}`))
	assert.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)
	assert.Equal(t, "eclipsefdn_view_all_profiles", cfg.Scope)
	assert.Equal(t, 0, cfg.Timeout)

	cfg, err = ParseOAuthConfig([]byte(`{"oauth":{"client_id":"id","endpoint":"https://accounts.example.org","timeout":300}}`))
	assert.NoError(t, err)
	assert.Equal(t, 300, cfg.Timeout)

	_, err = ParseOAuthConfig([]byte(`{"oauth":{}}`))
	assert.Error(t, err)
	_, err = ParseOAuthConfig([]byte(`not json`))
	assert.Error(t, err)
}

func TestNextLink(t *testing.T) {
	assert.Equal(t, "", nextLink(""))
	assert.Equal(t, "https://x/p?page=2", nextLink(`<https://x/p?page=1>; rel="self", <https://x/p?page=2>; rel="next", <https://x/p?page=3>; rel="last"`))
	assert.Equal(t, "", nextLink(`<https://x/p?page=3>; rel="self", <https://x/p?page=4>; rel="next", <https://x/p?page=3>; rel="last"`))
}
