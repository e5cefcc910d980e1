package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdeck/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	auth := NewAuthService(NewMemoryUserRepository(), NewMemoryTokenRepository(), testSecret)
	tasks := NewTaskService(NewMemoryTaskRepository())
	handler := NewRouter(
		&AuthHandler{Auth: auth},
		&TaskHandler{Tasks: tasks},
		zap.NewNop(),
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registerUser(t *testing.T, srv *httptest.Server) models.TokenPair {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{
		"email":     "a@b.com",
		"password":  "secret",
		"username":  "alice",
		"full_name": "Alice A",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[models.TokenPair](t, resp)
}

func TestRegisterLoginMe(t *testing.T) {
	srv := newTestServer(t)
	pair := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	loginPair := decode[models.TokenPair](t, resp)
	require.NotEmpty(t, loginPair.AccessToken)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[models.User](t, resp)
	assert.Equal(t, "a@b.com", profile.Email)
	assert.Equal(t, "Alice A", profile.Name)
}

func TestLoginBadCredentials(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid credentials", body["detail"])
}

func TestRegisterDuplicateUser(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{
		"email":    "a@b.com",
		"password": "other",
		"username": "alice",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRefreshRotation(t *testing.T) {
	srv := newTestServer(t)
	pair := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decode[models.TokenPair](t, resp)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// Replaying the rotated-out token fails.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutThenRefreshFails(t *testing.T) {
	srv := newTestServer(t)
	pair := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/logout", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	srv := newTestServer(t)

	for _, url := range []string{
		srv.URL + "/api/auth/me",
		srv.URL + "/api/tasks",
	} {
		resp := doJSON(t, http.MethodGet, url, "", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, url)

		resp = doJSON(t, http.MethodGet, url, "garbage", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, url)
	}
}

func TestTaskLifecycle(t *testing.T) {
	srv := newTestServer(t)
	pair := registerUser(t, srv)
	token := pair.AccessToken

	// Create.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", token, models.TaskDraft{
		Title: "write report",
		Tags:  []string{"work", "work", "urgent"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Task](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"work", "urgent"}, created.Tags)

	// List.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.Task](t, resp)
	require.Len(t, list, 1)

	// Toggle complete.
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/"+created.ID+"/complete", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	toggled := decode[models.Task](t, resp)
	assert.True(t, toggled.Completed)

	// Completed view now holds it; pending view is empty.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/completed", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Task](t, resp), 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/pending", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Task](t, resp))

	// Delay.
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/"+created.ID+"/delay", token,
		map[string]int{"delay_minutes": 30})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	delayed := decode[models.Task](t, resp)
	require.NotNil(t, delayed.ScheduledTime)

	// Delete.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/tasks/"+created.ID, token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Task](t, resp))
}

func TestCreateTaskValidation(t *testing.T) {
	srv := newTestServer(t)
	pair := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", pair.AccessToken,
		models.TaskDraft{Description: "no title"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["detail"], "title")
}

func TestTaskNotFound(t *testing.T) {
	srv := newTestServer(t)
	pair := registerUser(t, srv)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/missing/complete", pair.AccessToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/tasks/missing", pair.AccessToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDelayValidation(t *testing.T) {
	srv := newTestServer(t)
	pair := registerUser(t, srv)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/any/delay", pair.AccessToken,
		map[string]int{"delay_minutes": 0})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGoogleStartWithoutOAuthConfigured(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/auth/google", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
