package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc lets tests stand in for the real transport.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripperFunc) *http.Client {
	return &http.Client{Transport: fn, Timeout: time.Second}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

type staticTokenReader string

func (s staticTokenReader) AccessToken() string { return string(s) }

func TestExecute_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		return jsonResponse(200, `{}`), nil
	})

	g := New("http://example.com", client, nil)
	g.SetToken("abc")

	_, err := g.Execute(context.Background(), http.MethodGet, "/api/tasks", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestExecute_FallsBackToPersistedToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		return jsonResponse(200, `{}`), nil
	})

	// No in-memory token set: the persisted one must be used.
	g := New("http://example.com", client, staticTokenReader("persisted"))
	_, err := g.Execute(context.Background(), http.MethodGet, "/api/auth/me", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer persisted", gotAuth)

	// Once an in-memory token exists it wins.
	g.SetToken("fresh")
	_, err = g.Execute(context.Background(), http.MethodGet, "/api/auth/me", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", gotAuth)
}

func TestExecute_NoTokenNoHeader(t *testing.T) {
	var hasAuth bool
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		_, hasAuth = req.Header["Authorization"]
		return jsonResponse(200, `{}`), nil
	})

	g := New("http://example.com", client, nil)
	_, err := g.Execute(context.Background(), http.MethodPost, "/api/auth/login", map[string]string{"username": "u"})
	require.NoError(t, err)
	assert.False(t, hasAuth)
}

func TestExecute_ClassifiesStatusFamilies(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   ErrorKind
		msg    string
	}{
		{401, `{"detail":"invalid credentials"}`, KindAuth, "invalid credentials"},
		{400, `{"detail":"missing field"}`, KindValidation, "missing field"},
		{422, `{"detail":"malformed"}`, KindValidation, "malformed"},
		{404, ``, KindNotFound, "Not Found"},
		{500, `boom`, KindServer, "boom"},
		{503, ``, KindServer, "Service Unavailable"},
	}

	for _, tc := range cases {
		client := newTestClient(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(tc.status, tc.body), nil
		})
		g := New("http://example.com", client, nil)

		_, err := g.Execute(context.Background(), http.MethodGet, "/api/tasks", nil)
		require.Error(t, err, "status %d", tc.status)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "status %d", tc.status)
		assert.Equal(t, tc.kind, apiErr.Kind, "status %d", tc.status)
		assert.Equal(t, tc.status, apiErr.StatusCode)
		assert.Equal(t, tc.msg, apiErr.Message)
	}
}

func TestExecute_TransportFailureIsNetworkError(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	g := New("http://example.com", client, nil)
	_, err := g.Execute(context.Background(), http.MethodGet, "/api/tasks", nil)
	assert.True(t, IsNetwork(err))
	assert.True(t, IsOffline(err))
}

func TestExecute_EmptyBodyOn2xxIsNotAnError(t *testing.T) {
	for _, body := range []string{"", "deleted"} {
		client := newTestClient(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(200, body), nil
		})
		g := New("http://example.com", client, nil)

		payload, err := g.Execute(context.Background(), http.MethodDelete, "/api/tasks/1", nil)
		require.NoError(t, err)
		assert.Nil(t, payload)
	}
}

func TestExecute_ReturnsRawJSONPayload(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "http://example.com/api/tasks", req.URL.String())
		return jsonResponse(200, `[{"id":"1","title":"t"}]`), nil
	})

	g := New("http://example.com/", client, nil)
	payload, err := g.Execute(context.Background(), http.MethodGet, "/api/tasks", nil)
	require.NoError(t, err)

	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(payload, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "1", tasks[0]["id"])
}
