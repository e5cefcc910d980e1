package commands

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskdeck/internal/gateway"
)

func TestKeptLocally(t *testing.T) {
	network := &gateway.APIError{Kind: gateway.KindNetwork, Message: "connection refused"}
	server := &gateway.APIError{Kind: gateway.KindServer, StatusCode: 500, Message: "boom"}
	notFound := &gateway.APIError{Kind: gateway.KindNotFound, StatusCode: 404, Message: "task not found"}
	validation := &gateway.APIError{Kind: gateway.KindValidation, StatusCode: 422, Message: "bad"}

	assert.True(t, keptLocally(network, "1"))
	assert.True(t, keptLocally(fmt.Errorf("toggle task: %w", network), "1"))
	assert.True(t, keptLocally(server, "1"))

	// Rejections are real errors, not offline keeps.
	assert.False(t, keptLocally(notFound, "1"))
	assert.False(t, keptLocally(validation, "1"))

	// No identified local copy, nothing to report as kept.
	assert.False(t, keptLocally(network, ""))
}
