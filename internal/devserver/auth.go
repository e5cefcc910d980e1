package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
)

// AuthHandler handles HTTP requests for registration, login, token
// refresh, logout and the user profile.
type AuthHandler struct {
	Auth  *AuthService
	OAuth *GoogleOAuth
}

// RegisterRequest is the JSON payload for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// LoginRequest is the JSON payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshRequest carries the refresh token for refresh and logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /api/auth/register. All fields are required;
// a taken username or email is a 422.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" {
		writeError(w, http.StatusUnprocessableEntity, "email, password and username are required")
		return
	}

	pair, err := h.Auth.Register(r.Context(), req.Email, req.Password, req.Username, req.FullName)
	if errors.Is(err, ErrDuplicate) {
		writeError(w, http.StatusUnprocessableEntity, "user already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Login handles POST /api/auth/login. The username field may hold a
// username or an email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	pair, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /api/auth/refresh, rotating the refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if errors.Is(err, ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Logout handles POST /api/auth/logout, revoking the refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	if err := h.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me, returning the authenticated profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	profile, err := h.Auth.Profile(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GoogleStart handles GET /api/auth/google, returning the provider's
// authorization URL.
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		writeError(w, http.StatusInternalServerError, "oauth is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": h.OAuth.AuthURL()})
}

// GoogleCallback handles POST /api/auth/google/callback, exchanging the
// authorization code for a session.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		writeError(w, http.StatusInternalServerError, "oauth is not configured")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	identity, err := h.OAuth.Exchange(r.Context(), req.Code)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "code exchange failed")
		return
	}

	pair, err := h.Auth.SessionFor(r.Context(), identity.Email, identity.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// writeJSON writes v as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {"detail": ...} error shape the client parses.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
