package session

import (
	"fmt"

	"taskdeck/internal/models"
	"taskdeck/internal/storage"
)

// Durable key names for the persisted token pair. Fixed so independent
// consumers always read the same state.
const (
	accessTokenKey  = "auth_token"
	refreshTokenKey = "refresh_token"
)

// TokenStore holds the current token pair in durable storage. It has no
// network or business logic; it is the single source of truth for
// persisted credentials. Only the session manager writes to it.
type TokenStore struct {
	store storage.Store
}

// NewTokenStore wraps the given durable store.
func NewTokenStore(store storage.Store) *TokenStore {
	return &TokenStore{store: store}
}

// Set persists the token pair. The write is visible to all subsequent
// Get calls, including from other consumers of the same store.
func (t *TokenStore) Set(pair models.TokenPair) error {
	if err := t.store.Set(accessTokenKey, pair.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if err := t.store.Set(refreshTokenKey, pair.RefreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Get returns the persisted pair and whether one is present.
func (t *TokenStore) Get() (models.TokenPair, bool) {
	access, okA, err := t.store.Get(accessTokenKey)
	if err != nil || !okA || access == "" {
		return models.TokenPair{}, false
	}
	refresh, _, _ := t.store.Get(refreshTokenKey)
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, true
}

// Clear removes both tokens.
func (t *TokenStore) Clear() error {
	if err := t.store.Delete(accessTokenKey); err != nil {
		return fmt.Errorf("clear access token: %w", err)
	}
	if err := t.store.Delete(refreshTokenKey); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// AccessToken returns the persisted access token, or "". It implements
// the gateway's fallback token source for the boot-time window before
// the session manager installs an in-memory token.
func (t *TokenStore) AccessToken() string {
	pair, ok := t.Get()
	if !ok {
		return ""
	}
	return pair.AccessToken
}
