// Package session manages the authentication token lifecycle: password
// login, signup, third-party OAuth code exchange, silent refresh and
// logout. It owns the token pair exclusively and exposes identity state
// to the rest of the application as derived values only.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"taskdeck/internal/gateway"
	"taskdeck/internal/models"
)

// API endpoints consumed by the manager.
const (
	loginEndpoint         = "/api/auth/login"
	registerEndpoint      = "/api/auth/register"
	logoutEndpoint        = "/api/auth/logout"
	refreshEndpoint       = "/api/auth/refresh"
	profileEndpoint       = "/api/auth/me"
	oauthStartEndpoint    = "/api/auth/google"
	oauthCallbackEndpoint = "/api/auth/google/callback"
)

// State is the session lifecycle state.
type State string

const (
	// StateAnonymous means no valid session exists.
	StateAnonymous State = "anonymous"
	// StateAuthenticating means a login/signup/OAuth exchange is in flight.
	StateAuthenticating State = "authenticating"
	// StateAuthenticated means a valid session and user profile exist.
	StateAuthenticated State = "authenticated"
	// StateRefreshing means a token refresh is in flight.
	StateRefreshing State = "refreshing"
)

var (
	// ErrMissingFields is returned when login or signup is called with
	// an empty required field. No network request is made.
	ErrMissingFields = errors.New("missing required fields")
	// ErrNotAuthenticated is returned when an operation needs a stored
	// session and none exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrOAuthProvider is returned when the provider redirected back
	// with an error parameter instead of a code.
	ErrOAuthProvider = errors.New("oauth provider reported an error")
	// ErrMissingCode is returned when the OAuth redirect carried no
	// authorization code.
	ErrMissingCode = errors.New("no authorization code received")
	// ErrMalformedTokens is returned when a token endpoint responded
	// 2xx but the payload did not contain a usable token pair.
	ErrMalformedTokens = errors.New("malformed token response")
	// ErrNoAuthURL is returned when the backend could not produce an
	// OAuth authorization URL.
	ErrNoAuthURL = errors.New("no authorization url in response")
)

// CacheClearer is the slice of the offline cache the manager needs on
// logout: session-scoped task data must go when the session goes.
type CacheClearer interface {
	Clear() error
}

// RedirectFunc sends the browsing context to an external URL. Control
// does not return to the caller on success; navigation leaves the
// current context.
type RedirectFunc func(url string) error

// Manager orchestrates the session lifecycle over the gateway and the
// token store. There is at most one active session at a time.
type Manager struct {
	gw       *gateway.Gateway
	tokens   *TokenStore
	cache    CacheClearer
	redirect RedirectFunc
	log      *zap.Logger

	// refreshGroup serializes refresh attempts: concurrent callers
	// await the single outstanding request instead of issuing their
	// own, which would invalidate each other's refresh tokens.
	refreshGroup singleflight.Group

	stateValue stateBox
}

// NewManager constructs a session manager. cache and redirect may be
// nil when the consumer has no offline cache or no navigable context.
func NewManager(gw *gateway.Gateway, tokens *TokenStore, cache CacheClearer, redirect RedirectFunc, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		gw:       gw,
		tokens:   tokens,
		cache:    cache,
		redirect: redirect,
		log:      log,
	}
	m.stateValue.set(StateAnonymous, nil, time.Time{})
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	s, _ := m.stateValue.get()
	return s
}

// IsAuthenticated reports whether a valid session and profile exist.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// CurrentUser returns the cached profile projection, if authenticated.
func (m *Manager) CurrentUser() (models.User, bool) {
	_, u := m.stateValue.get()
	if u == nil {
		return models.User{}, false
	}
	return *u, true
}

// Login exchanges credentials for a token pair and loads the profile.
// On rejection the state stays Anonymous and no tokens are kept in
// memory.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	if identifier == "" || secret == "" {
		return ErrMissingFields
	}

	m.stateValue.setState(StateAuthenticating)
	payload, err := m.gw.Execute(ctx, http.MethodPost, loginEndpoint, map[string]string{
		"username": identifier,
		"password": secret,
	})
	if err != nil {
		m.stateValue.setState(StateAnonymous)
		return fmt.Errorf("login: %w", err)
	}

	return m.adoptSession(ctx, payload)
}

// Signup registers a new account and establishes a session with the
// same token/profile flow as Login. The backend's username field is
// derived from the display name.
func (m *Manager) Signup(ctx context.Context, email, secret, name string) error {
	if email == "" || secret == "" || name == "" {
		return ErrMissingFields
	}

	m.stateValue.setState(StateAuthenticating)
	payload, err := m.gw.Execute(ctx, http.MethodPost, registerEndpoint, map[string]string{
		"email":     email,
		"password":  secret,
		"username":  deriveUsername(name),
		"full_name": name,
	})
	if err != nil {
		m.stateValue.setState(StateAnonymous)
		return fmt.Errorf("signup: %w", err)
	}

	return m.adoptSession(ctx, payload)
}

// StartOAuth asks the backend for an authorization URL and redirects
// the browsing context to it. On success this call does not return in
// the same execution context.
func (m *Manager) StartOAuth(ctx context.Context) error {
	payload, err := m.gw.Execute(ctx, http.MethodGet, oauthStartEndpoint, nil)
	if err != nil {
		return fmt.Errorf("oauth start: %w", err)
	}

	var resp struct {
		AuthURL string `json:"auth_url"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil || resp.AuthURL == "" {
		return ErrNoAuthURL
	}
	if m.redirect == nil {
		return ErrNoAuthURL
	}
	return m.redirect(resp.AuthURL)
}

// CompleteOAuth finishes the flow after the provider redirects back.
// providerErr is the redirect's error parameter, if any; when present
// the exchange endpoint is never called and the session stays
// Anonymous.
func (m *Manager) CompleteOAuth(ctx context.Context, code, providerErr string) error {
	if providerErr != "" {
		return fmt.Errorf("%w: %s", ErrOAuthProvider, providerErr)
	}
	if code == "" {
		return ErrMissingCode
	}

	m.stateValue.setState(StateAuthenticating)
	payload, err := m.gw.Execute(ctx, http.MethodPost, oauthCallbackEndpoint, map[string]string{"code": code})
	if err != nil {
		m.stateValue.setState(StateAnonymous)
		return fmt.Errorf("oauth exchange: %w", err)
	}

	return m.adoptSession(ctx, payload)
}

// Refresh exchanges the stored refresh token for a new pair. At most
// one refresh is in flight at a time; concurrent callers observe the
// outcome of the one outstanding attempt. On failure the session is
// cleared and never retried automatically.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.doRefresh(ctx)
	})
	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	pair, ok := m.tokens.Get()
	if !ok || pair.RefreshToken == "" {
		m.clearLocal()
		return ErrNotAuthenticated
	}

	m.stateValue.setState(StateRefreshing)
	payload, err := m.gw.Execute(ctx, http.MethodPost, refreshEndpoint, map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if err != nil {
		m.log.Warn("token refresh failed, clearing session", zap.Error(err))
		m.clearLocal()
		return fmt.Errorf("refresh: %w", err)
	}

	newPair, err := decodeTokenPair(payload)
	if err != nil {
		m.clearLocal()
		return err
	}

	if err := m.adoptTokens(newPair); err != nil {
		return err
	}
	m.stateValue.setState(StateAuthenticated)
	return nil
}

// CheckStatus validates a persisted session on load. A stale access
// token gets exactly one refresh followed by one profile retry; any
// further failure clears the session. With no stored token the state is
// simply Anonymous.
func (m *Manager) CheckStatus(ctx context.Context) error {
	pair, ok := m.tokens.Get()
	if !ok {
		m.stateValue.setState(StateAnonymous)
		return nil
	}
	m.gw.SetToken(pair.AccessToken)

	user, err := m.fetchProfile(ctx)
	if err == nil {
		m.stateValue.set(StateAuthenticated, &user, time.Time{})
		return nil
	}

	if err := m.Refresh(ctx); err != nil {
		return fmt.Errorf("status check: %w", err)
	}

	user, err = m.fetchProfile(ctx)
	if err != nil {
		m.clearLocal()
		return fmt.Errorf("status check: %w", err)
	}
	m.stateValue.set(StateAuthenticated, &user, time.Time{})
	return nil
}

// Logout invalidates the refresh token remotely on a best-effort basis
// and then unconditionally clears local session state and the cached
// task data tied to it. A failed remote call is logged, never surfaced.
func (m *Manager) Logout(ctx context.Context) {
	if pair, ok := m.tokens.Get(); ok && pair.RefreshToken != "" {
		_, err := m.gw.Execute(ctx, http.MethodPost, logoutEndpoint, map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		if err != nil {
			m.log.Warn("remote logout failed", zap.Error(err))
		}
	}

	m.clearLocal()
	if m.cache != nil {
		if err := m.cache.Clear(); err != nil {
			m.log.Warn("failed to clear task cache", zap.Error(err))
		}
	}
}

// adoptSession stores the token pair from an auth endpoint payload and
// fetches the user profile. Tokens that were persisted stay persisted
// even if the profile fetch fails; CheckStatus can recover the session
// later.
func (m *Manager) adoptSession(ctx context.Context, payload json.RawMessage) error {
	pair, err := decodeTokenPair(payload)
	if err != nil {
		m.stateValue.setState(StateAnonymous)
		return err
	}
	if err := m.adoptTokens(pair); err != nil {
		m.stateValue.setState(StateAnonymous)
		return err
	}

	user, err := m.fetchProfile(ctx)
	if err != nil {
		m.stateValue.setState(StateAnonymous)
		return fmt.Errorf("fetch profile: %w", err)
	}

	var expiresAt time.Time
	if pair.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	}
	m.stateValue.set(StateAuthenticated, &user, expiresAt)
	return nil
}

// adoptTokens persists the pair and installs it on the gateway.
func (m *Manager) adoptTokens(pair models.TokenPair) error {
	if err := m.tokens.Set(pair); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	m.gw.SetToken(pair.AccessToken)
	return nil
}

func (m *Manager) fetchProfile(ctx context.Context) (models.User, error) {
	payload, err := m.gw.Execute(ctx, http.MethodGet, profileEndpoint, nil)
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return models.User{}, fmt.Errorf("decode profile: %w", err)
	}
	return user, nil
}

// clearLocal drops the in-memory and persisted session state. The task
// cache is left alone; only an explicit Logout clears it.
func (m *Manager) clearLocal() {
	if err := m.tokens.Clear(); err != nil {
		m.log.Warn("failed to clear token store", zap.Error(err))
	}
	m.gw.ClearToken()
	m.stateValue.set(StateAnonymous, nil, time.Time{})
}

// decodeTokenPair parses a token endpoint payload and rejects responses
// without both tokens.
func decodeTokenPair(payload json.RawMessage) (models.TokenPair, error) {
	var pair models.TokenPair
	if err := json.Unmarshal(payload, &pair); err != nil {
		return models.TokenPair{}, ErrMalformedTokens
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return models.TokenPair{}, ErrMalformedTokens
	}
	return pair, nil
}

// deriveUsername builds the backend's username field from a display
// name: lowercased, whitespace collapsed to underscores.
func deriveUsername(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
