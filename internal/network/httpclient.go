// File: internal/network/httpclient.go
package network

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Defaults for the portal-facing transport. The pools are sized for a single
// cooperative session, not a scanning workload.
const (
	DefaultTLSHandshakeTimeout   = 5 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultMaxIdleConnsPerHost   = 4
	DefaultIdleConnTimeout       = 30 * time.Second
)

// ClientConfig holds the configuration for a per-session HTTP client.
type ClientConfig struct {
	// IgnoreTLSErrors disables certificate verification. Campus portals
	// routinely serve broken chains, so this is commonly on.
	IgnoreTLSErrors bool

	// RatePerSecond and RateBurst bound how fast the session talks to the
	// portal. Zero RatePerSecond disables pacing.
	RatePerSecond float64
	RateBurst     int

	// UserAgent is applied to every outgoing request.
	UserAgent string

	Logger *zap.Logger
}

// NewSessionClient builds an http.Client that owns a fresh, private cookie
// jar. One client == one logical user; callers must not share it across
// users or reuse it across login attempts.
//
// Redirects are followed (the CAS flow depends on them); the caller inspects
// the redirect chain through http.Response.Request when needed.
func NewSessionClient(cfg ClientConfig) (*http.Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.IgnoreTLSErrors,
		},
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		ForceAttemptHTTP2:     true,
	}

	var rt http.RoundTripper = transport
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		rt = &pacedRoundTripper{
			next:    rt,
			limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		}
	}
	if cfg.UserAgent != "" {
		rt = &userAgentRoundTripper{next: rt, userAgent: cfg.UserAgent}
	}

	return &http.Client{
		Transport: rt,
		Jar:       jar,
	}, nil
}

// CloseIdle releases the client's pooled connections. Called when a session
// is abandoned.
func CloseIdle(client *http.Client) {
	if client != nil {
		client.CloseIdleConnections()
	}
}

// pacedRoundTripper throttles outgoing requests with a token bucket. This is
// politeness toward the remote portal, not a correctness requirement.
type pacedRoundTripper struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (p *pacedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := p.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return p.next.RoundTrip(req)
}

// CloseIdleConnections forwards to the wrapped transport so
// http.Client.CloseIdleConnections still reaches the connection pool.
func (p *pacedRoundTripper) CloseIdleConnections() {
	closeIdle(p.next)
}

// userAgentRoundTripper stamps the platform's expected User-Agent onto every
// request that does not already carry one.
type userAgentRoundTripper struct {
	next      http.RoundTripper
	userAgent string
}

func (u *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// Clone before mutating; RoundTrippers must not modify the original request.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", u.userAgent)
	}
	return u.next.RoundTrip(req)
}

func (u *userAgentRoundTripper) CloseIdleConnections() {
	closeIdle(u.next)
}

func closeIdle(rt http.RoundTripper) {
	if c, ok := rt.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
