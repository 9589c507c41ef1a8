// Package throttle rate limits outgoing HTTP requests.
package throttle

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Transport waits on a token bucket before handing each request to Base.
type Transport struct {
	Base    http.RoundTripper
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying round tripper.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.Base = base
	}
}

// WithLogger sets the logger used to report throttled requests.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport allows limit requests per second with the given burst. A
// non-positive limit disables throttling.
func NewTransport(limit rate.Limit, burst int, options ...Option) *Transport {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	t := &Transport{
		Base:    http.DefaultTransport,
		limiter: rate.NewLimiter(limit, burst),
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if waited := time.Since(start); waited > time.Second {
		t.logger.Debug("request throttled", "url", req.URL.String(), "waited", waited)
	}
	return t.Base.RoundTrip(req)
}

// Client returns an http.Client using t with the given timeout.
func (t *Transport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}
