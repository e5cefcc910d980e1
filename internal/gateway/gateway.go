// Package gateway executes HTTP requests against the task service API,
// attaching bearer credentials and classifying failures into typed
// error kinds that the session and sync layers branch on.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TokenReader supplies the persisted access token. It is consulted only
// when no in-memory token has been set yet, covering the boot-time race
// before the session manager initializes.
type TokenReader interface {
	// AccessToken returns the stored access token, or "" if absent.
	AccessToken() string
}

// Gateway executes API requests. It performs no automatic retries; the
// single 401→refresh→retry sequence is orchestrated by the session
// manager, not here.
type Gateway struct {
	baseURL string
	client  *http.Client

	// persisted is the fallback token source (may be nil).
	persisted TokenReader

	mu    sync.RWMutex
	token string
}

// New constructs a Gateway for the API at baseURL. persisted may be nil
// if no durable token fallback is available. A nil client gets a
// default with a 10s timeout.
func New(baseURL string, client *http.Client, persisted TokenReader) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Gateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		persisted: persisted,
	}
}

// SetToken installs the in-memory access token attached to subsequent
// requests.
func (g *Gateway) SetToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
}

// ClearToken removes the in-memory access token.
func (g *Gateway) ClearToken() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = ""
}

// bearerToken returns the token to attach: the in-memory one, else the
// persisted one, else "".
func (g *Gateway) bearerToken() string {
	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token != "" {
		return token
	}
	if g.persisted != nil {
		return g.persisted.AccessToken()
	}
	return ""
}

// Execute sends one request and returns the raw JSON payload. A nil
// body sends no request body. Non-2xx responses become an *APIError
// classified by status family; transport failures become KindNetwork.
// A 2xx response with an empty or non-JSON body yields a nil payload,
// not an error, since some endpoints legitimately return no content.
func (g *Gateway) Execute(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := g.bearerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, errorMessage(payload))
	}

	if len(payload) == 0 || !json.Valid(payload) {
		return nil, nil
	}
	return payload, nil
}

// errorMessage pulls a human-readable message out of an error body.
// The backend reports failures as {"detail": "..."}; anything else is
// passed through as-is.
func errorMessage(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return strings.TrimSpace(string(body))
}
