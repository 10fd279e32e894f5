// File: internal/campus/auth/session.go

// Package auth drives the campus platform's CAS single-sign-on flow: it
// resolves an institution's portal endpoint from the public directory and
// runs the login state machine, including the conditional slider captcha and
// the salt-encrypted password field.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"campusdaily/internal/campus/captcha"
	"campusdaily/internal/campus/cryptoenv"
	"campusdaily/internal/config"
	"campusdaily/internal/network"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Status tracks where a session stands in its lifecycle.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusAuthenticated
	StatusFailed
)

// Institution is the resolved portal descriptor for one school. Immutable
// after resolution.
type Institution struct {
	Name string
	ID   string
	// Root is the portal base (scheme://host), the "amp root".
	Root string
	// RootHost is Root's host, kept for the redirect-based login check.
	RootHost string
	// LoginPath is the portal's CAS entry path, always ending in /login.
	LoginPath string
	// LoginService is the service callback URL passed to CAS.
	LoginService string
}

// Session owns one HTTP client and cookie jar for one logical user. Sessions
// are never shared across users and never reused across login attempts.
type Session struct {
	log      *zap.Logger
	client   *http.Client
	username string
	password string

	slowTimeout time.Duration

	// Directory endpoints, overridable in tests.
	directoryURL string
	detailURL    string

	inst   *Institution
	status Status
}

// Option adjusts a Session at construction time.
type Option func(*Session)

// WithDirectory points the session at alternative directory endpoints.
// Primarily used by tests speaking to an httptest server.
func WithDirectory(listURL, detailURL string) Option {
	return func(s *Session) {
		s.directoryURL = listURL
		s.detailURL = detailURL
	}
}

// NewSession builds a session with a fresh private cookie jar.
func NewSession(username, password string, netCfg config.NetworkConfig, logger *zap.Logger, opts ...Option) (*Session, error) {
	client, err := network.NewSessionClient(network.ClientConfig{
		IgnoreTLSErrors: netCfg.IgnoreTLSErrors,
		RatePerSecond:   netCfg.RatePerSecond,
		RateBurst:       netCfg.RateBurst,
		UserAgent:       loginUserAgent,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	slowTimeout := netCfg.SlowRequestTimeout
	if slowTimeout <= 0 {
		slowTimeout = 10 * time.Second
	}

	s := &Session{
		log:          logger.Named("auth").With(zap.String("username", username)),
		client:       client,
		username:     username,
		password:     password,
		slowTimeout:  slowTimeout,
		directoryURL: DirectoryURL,
		detailURL:    DetailURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the session's pooled connections. The cookie jar dies with
// the session.
func (s *Session) Close() {
	network.CloseIdle(s.client)
}

// Client exposes the authenticated HTTP client to the collector layer.
func (s *Session) Client() *http.Client { return s.client }

// Institution returns the resolved descriptor, nil before resolution.
func (s *Session) Institution() *Institution { return s.inst }

// Username returns the user this session belongs to.
func (s *Session) Username() string { return s.username }

// Status returns the session's authentication status.
func (s *Session) Status() Status { return s.status }

// --- Institution resolution ---

type tenantSummary struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type tenantListResponse struct {
	ErrCode int             `json:"errCode"`
	ErrMsg  string          `json:"errMsg"`
	Data    []tenantSummary `json:"data"`
}

type tenantDetail struct {
	ID      json.Number `json:"id"`
	Name    string      `json:"name"`
	IDSURL  string      `json:"idsUrl"`
	AmpURL  string      `json:"ampUrl"`
	AmpURL2 string      `json:"ampUrl2"`
}

type tenantDetailResponse struct {
	ErrCode int            `json:"errCode"`
	ErrMsg  string         `json:"errMsg"`
	Data    []tenantDetail `json:"data"`
}

// ResolveInstitution looks up an institution by exact name in the platform
// directory and derives its portal descriptor. When the directory holds
// duplicate names, the first match wins.
func (s *Session) ResolveInstitution(ctx context.Context, name string) (*Institution, error) {
	var list tenantListResponse
	// The directory response is a single bulk page and is slow server-side.
	if err := s.getJSON(ctx, s.directoryURL, true, &list); err != nil {
		return nil, fmt.Errorf("fetching institution directory: %w", err)
	}
	s.log.Debug("Institution directory fetched", zap.Int("count", len(list.Data)))

	var match *tenantSummary
	for i := range list.Data {
		if list.Data[i].Name == name {
			match = &list.Data[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrInstitutionNotFound, name)
	}

	detailURL := s.detailURL + "?ids=" + url.QueryEscape(match.ID.String())
	var detail tenantDetailResponse
	if err := s.getJSON(ctx, detailURL, false, &detail); err != nil {
		return nil, fmt.Errorf("fetching institution detail: %w", err)
	}
	s.log.Debug("Institution detail fetched",
		zap.Int("errCode", detail.ErrCode), zap.String("errMsg", detail.ErrMsg))
	if len(detail.Data) == 0 {
		return nil, fmt.Errorf("institution detail for %q is empty", name)
	}

	inst, err := deriveInstitution(name, &detail.Data[0])
	if err != nil {
		return nil, err
	}
	s.inst = inst
	s.log.Info("Institution resolved",
		zap.String("school", name), zap.String("root", inst.Root))
	return inst, nil
}

// deriveInstitution applies the two-candidate URL rule: ampUrl2 is preferred
// over ampUrl, and a candidate only qualifies when it carries a recognized
// portal marker.
func deriveInstitution(name string, detail *tenantDetail) (*Institution, error) {
	for _, candidate := range []string{detail.AmpURL2, detail.AmpURL} {
		if candidate == "" || !containsMarker(candidate) {
			continue
		}
		parsed, err := url.Parse(candidate)
		if err != nil {
			return nil, fmt.Errorf("parsing portal URL %q: %w", candidate, err)
		}
		root := parsed.Scheme + "://" + parsed.Host
		return &Institution{
			Name:         name,
			ID:           detail.ID.String(),
			Root:         root,
			RootHost:     parsed.Host,
			LoginPath:    parsed.Path + "/login",
			LoginService: root + portalLoginSuffix,
		}, nil
	}
	return nil, fmt.Errorf("%w: institution %q", ErrUnsupportedPortal, name)
}

func containsMarker(candidate string) bool {
	for _, marker := range portalMarkers {
		if strings.Contains(candidate, marker) {
			return true
		}
	}
	return false
}

// --- Login state machine ---

// loginState names each phase of the CAS flow so transitions are explicit
// and independently testable rather than buried in nested conditionals.
type loginState int

const (
	stateFetchingForm loginState = iota
	stateCaptchaCheck
	stateSolving
	stateSubmitting
	stateVerifying
	stateAuthenticated
	stateFailed
)

func (s loginState) String() string {
	switch s {
	case stateFetchingForm:
		return "FetchingForm"
	case stateCaptchaCheck:
		return "CaptchaCheck"
	case stateSolving:
		return "Solving"
	case stateSubmitting:
		return "Submitting"
	case stateVerifying:
		return "Verifying"
	case stateAuthenticated:
		return "Authenticated"
	case stateFailed:
		return "Failed"
	}
	return "Unknown"
}

// loginAttempt carries the ephemeral state of one attempt. Built fresh per
// login, discarded after the POST.
type loginAttempt struct {
	fields  map[string]string
	salt    string
	hasSalt bool

	casTarget *url.URL
	casRoot   string

	finalResp *http.Response
	finalBody []byte
}

// Login drives the CAS state machine to completion. The boolean reports
// whether the portal accepted the credentials; an error means the exchange
// itself broke (malformed pages, undecodable images, network failures).
func (s *Session) Login(ctx context.Context) (bool, error) {
	if s.inst == nil {
		return false, ErrNotResolved
	}

	att := &loginAttempt{}
	state := stateFetchingForm
	for {
		s.log.Debug("Login state", zap.Stringer("state", state))
		var err error
		switch state {
		case stateFetchingForm:
			state, err = s.fetchLoginForm(ctx, att)
		case stateCaptchaCheck:
			state, err = s.checkCaptcha(ctx, att)
		case stateSolving:
			state, err = s.solveCaptcha(ctx, att)
		case stateSubmitting:
			state, err = s.submitLogin(ctx, att)
		case stateVerifying:
			state = s.verifyLogin(att)
		case stateAuthenticated:
			s.status = StatusAuthenticated
			s.log.Info("Login succeeded")
			return true, nil
		case stateFailed:
			s.status = StatusFailed
			s.log.Warn("Login failed")
			return false, nil
		}
		if err != nil {
			s.status = StatusFailed
			return false, err
		}
	}
}

// fetchLoginForm GETs the portal login URL (following the redirect chain into
// the CAS host), scrapes the hidden form fields and the optional password
// salt, and records the final URL as the POST target.
func (s *Session) fetchLoginForm(ctx context.Context, att *loginAttempt) (loginState, error) {
	loginURL := s.inst.Root + s.inst.LoginPath + "?service=" + url.QueryEscape(s.inst.LoginService)

	body, resp, err := s.get(ctx, loginURL, true)
	if err != nil {
		return stateFailed, fmt.Errorf("fetching login page: %w", err)
	}

	// The CAS server the chain lands on is the POST target, not the portal
	// URL we started from.
	att.casTarget = resp.Request.URL
	att.casRoot = att.casTarget.Scheme + "://" + att.casTarget.Host
	s.log.Debug("Login page fetched", zap.String("cas_target", att.casTarget.String()))

	doc, err := parsePage(body)
	if err != nil {
		return stateFailed, fmt.Errorf("parsing login page: %w", err)
	}
	fields, err := extractLoginFields(doc)
	if err != nil {
		return stateFailed, err
	}
	att.fields = fields

	att.salt, att.hasSalt = extractSalt(doc, body)
	if !att.hasSalt {
		// Deliberate fallback: without a salt the portal expects the
		// password in plaintext.
		s.log.Warn("No password salt on login page; password will be sent unencrypted")
	}
	return stateCaptchaCheck, nil
}

// checkCaptcha asks the CAS server whether this username currently requires
// a captcha. Only the literal strings "true"/"True" are affirmative.
func (s *Session) checkCaptcha(ctx context.Context, att *loginAttempt) (loginState, error) {
	checkURL := att.casRoot + needCaptchaPath + "?username=" + url.QueryEscape(s.username)
	body, _, err := s.get(ctx, checkURL, false)
	if err != nil {
		return stateFailed, fmt.Errorf("captcha requirement check: %w", err)
	}

	flag := string(body)
	need := flag == "true" || flag == "True"
	s.log.Debug("Captcha requirement checked", zap.Bool("required", need), zap.String("flag", flag))
	if need {
		return stateSolving, nil
	}
	return stateSubmitting, nil
}

type sliderChallenge struct {
	BigImage   string `json:"bigImage"`
	SmallImage string `json:"smallImage"`
}

type sliderVerdict struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Sign    string `json:"sign"`
}

// solveCaptcha fetches the puzzle pair, computes the slide offset, and
// submits it for verification. The returned signature token is attached to
// the login fields even when the server rejects the solution; the login is
// ultimately judged by the redirect check, not by the captcha verdict.
func (s *Session) solveCaptcha(ctx context.Context, att *loginAttempt) (loginState, error) {
	imageURL := att.casRoot + sliderCaptchaPath + "?username=" + url.QueryEscape(s.username)
	var challenge sliderChallenge
	if err := s.getJSON(ctx, imageURL, false, &challenge); err != nil {
		return stateFailed, fmt.Errorf("fetching slider images: %w", err)
	}

	bigImage, err := base64.StdEncoding.DecodeString(challenge.BigImage)
	if err != nil {
		return stateFailed, fmt.Errorf("decoding big image: %w", err)
	}
	smallImage, err := base64.StdEncoding.DecodeString(challenge.SmallImage)
	if err != nil {
		return stateFailed, fmt.Errorf("decoding small image: %w", err)
	}

	solution, err := captcha.Solve(bigImage, smallImage)
	if err != nil {
		return stateFailed, err
	}
	s.log.Debug("Slider captcha solved", zap.Int("move_length", solution.MoveLength))

	verifyURL := fmt.Sprintf("%s%s?canvasLength=%d&moveLength=%d",
		att.casRoot, sliderVerifyPath, solution.CanvasLength, solution.MoveLength)
	var verdict sliderVerdict
	if err := s.getJSON(ctx, verifyURL, false, &verdict); err != nil {
		return stateFailed, fmt.Errorf("verifying slider solution: %w", err)
	}
	if verdict.Code != 0 {
		// Not fatal: the final redirect check decides the login outcome.
		s.log.Warn("Server rejected the captcha solution",
			zap.Int("code", verdict.Code), zap.String("message", verdict.Message))
	}
	att.fields["sign"] = verdict.Sign
	return stateSubmitting, nil
}

// submitLogin fills in the credentials and POSTs the collected fields as
// query parameters (a platform idiosyncrasy: the CAS endpoint reads the
// query string, not a form body), following redirects.
func (s *Session) submitLogin(ctx context.Context, att *loginAttempt) (loginState, error) {
	att.fields["username"] = s.username
	if att.hasSalt {
		encrypted, err := cryptoenv.EncryptPassword(s.password, att.salt)
		if err != nil {
			return stateFailed, fmt.Errorf("encrypting password: %w", err)
		}
		att.fields["password"] = encrypted
	} else {
		att.fields["password"] = s.password
	}

	target := *att.casTarget
	query := target.Query()
	for name, value := range att.fields {
		query.Set(name, value)
	}
	target.RawQuery = query.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, s.slowTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target.String(), nil)
	if err != nil {
		return stateFailed, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return stateFailed, fmt.Errorf("posting login form: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stateFailed, fmt.Errorf("reading login response: %w", err)
	}
	att.finalResp = resp
	att.finalBody = body
	return stateVerifying, nil
}

// verifyLogin applies the success rule: the POST must have produced at least
// one redirect hop, and the first redirect's Location must point back at the
// institution's portal host. Anything else is a failed login; the final page
// is scraped for a server-side error message, best effort.
func (s *Session) verifyLogin(att *loginAttempt) loginState {
	first := firstRedirect(att.finalResp)
	if first == nil {
		s.log.Warn("Login POST produced no redirect")
		s.logServerError(att.finalBody)
		return stateFailed
	}

	location, err := url.Parse(first.Header.Get("Location"))
	if err != nil || location.Host != s.inst.RootHost {
		s.log.Warn("Login redirect does not return to the portal host",
			zap.String("location", first.Header.Get("Location")),
			zap.String("expected_host", s.inst.RootHost))
		s.logServerError(att.finalBody)
		return stateFailed
	}
	return stateAuthenticated
}

func (s *Session) logServerError(body []byte) {
	if msg := scrapeErrorMessage(body); msg != "" {
		s.log.Warn("Error message from server", zap.String("message", msg))
	}
}

// firstRedirect walks the followed-redirect chain back to the earliest
// intermediate response, nil when the final response was direct.
func firstRedirect(resp *http.Response) *http.Response {
	var first *http.Response
	for r := resp.Request.Response; r != nil; r = r.Request.Response {
		first = r
	}
	return first
}

// --- HTTP helpers ---

// get performs a GET and returns the body plus the final response. slow
// selects the per-request deadline used for the platform's slow endpoints.
func (s *Session) get(ctx context.Context, rawURL string, slow bool) ([]byte, *http.Response, error) {
	if slow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.slowTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return body, resp, nil
}

func (s *Session) getJSON(ctx context.Context, rawURL string, slow bool, v any) error {
	body, _, err := s.get(ctx, rawURL, slow)
	if err != nil {
		return err
	}
	return jsonCodec.Unmarshal(body, v)
}
