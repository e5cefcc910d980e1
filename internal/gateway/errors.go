package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an API failure by what the caller can do about it.
type ErrorKind string

const (
	// KindAuth means the credentials were rejected (401). The session
	// layer resolves this with a single refresh-then-retry.
	KindAuth ErrorKind = "auth"
	// KindValidation means the request was malformed or incomplete
	// (400/422). The server's message is surfaced verbatim.
	KindValidation ErrorKind = "validation"
	// KindNotFound means the resource does not exist (404).
	KindNotFound ErrorKind = "not_found"
	// KindServer means the service failed (5xx). Transient; the caller
	// may retry manually.
	KindServer ErrorKind = "server"
	// KindNetwork means the request never reached the service. Reads
	// fall back to the offline cache; writes keep their optimistic
	// local state.
	KindNetwork ErrorKind = "network"
)

// APIError is the structured failure returned by the gateway. Callers
// branch on Kind via errors.As or the helper predicates below.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// classifyStatus maps a non-2xx status code to an APIError by family.
func classifyStatus(status int, message string) *APIError {
	kind := KindServer
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status == http.StatusNotFound:
		kind = KindNotFound
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Kind: kind, StatusCode: status, Message: message}
}

// networkError wraps a transport-level failure.
func networkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: err.Error(), cause: err}
}

// kindOf extracts the ErrorKind from err, or "" if err is not an APIError.
func kindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuth reports whether err is a credential rejection (401).
func IsAuth(err error) bool { return kindOf(err) == KindAuth }

// IsNetwork reports whether err means the service was unreachable.
func IsNetwork(err error) bool { return kindOf(err) == KindNetwork }

// IsValidation reports whether err is a 400/422 rejection.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsOffline reports whether err should trigger the offline fallback
// path: the service was unreachable or failing (network or 5xx), as
// opposed to rejecting a well-formed request.
func IsOffline(err error) bool {
	k := kindOf(err)
	return k == KindNetwork || k == KindServer
}
