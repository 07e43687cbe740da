package gateway_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
	"github.com/grasp-labs/ds-go-ws-gateway/internal/fakes"
)

func TestValidateOrigin_AllowListMatch(t *testing.T) {
	allowList := []string{"https://app.example.dev"}

	result := gateway.ValidateOrigin("https://app.example.dev", allowList)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Error)

	result = gateway.ValidateOrigin("https://evil.com", allowList)
	assert.False(t, result.Valid)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Contains(t, result.Error, "not allowed")
}

func TestValidateOrigin_CaseAndWhitespaceNormalization(t *testing.T) {
	allowList := []string{"https://App.Example.Dev"}

	for _, origin := range []string{
		"https://app.example.dev",
		"HTTPS://APP.EXAMPLE.DEV",
		"  https://app.example.dev  ",
	} {
		result := gateway.ValidateOrigin(origin, allowList)
		assert.True(t, result.Valid, "origin %q should match", origin)
	}
}

func TestValidateOrigin_SubdomainMatch(t *testing.T) {
	allowList := []string{"https://example.dev"}

	assert.True(t, gateway.ValidateOrigin("https://app.example.dev", allowList).Valid)
	assert.True(t, gateway.ValidateOrigin("https://deep.nested.example.dev", allowList).Valid)

	// Not a subdomain, just a lookalike suffix.
	assert.False(t, gateway.ValidateOrigin("https://evilexample.dev", allowList).Valid)
}

func TestValidateOrigin_MissingHeaderIsPermissive(t *testing.T) {
	result := gateway.ValidateOrigin("", []string{"https://app.example.dev"})
	assert.True(t, result.Valid)
}

func TestGatewayValidateOrigin_EmitsAuditEvents(t *testing.T) {
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(fakes.NewConfig("https://app.example.dev"), logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	req := models.ConnectionRequest{
		Headers:    http.Header{"Origin": []string{"https://app.example.dev"}},
		URL:        "/ws",
		RemoteAddr: "10.0.0.1:1234",
	}
	result := g.ValidateOrigin(context.Background(), req)
	assert.True(t, result.Valid)
	assert.Len(t, logger.EventsOfType(models.OriginValidationPassed), 1)

	req.Headers.Set("Origin", "https://evil.com")
	result = g.ValidateOrigin(context.Background(), req)
	assert.False(t, result.Valid)

	failed := logger.EventsOfType(models.OriginValidationFailed)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Blocked)
	assert.Equal(t, "https://evil.com", failed[0].Origin)
	assert.Contains(t, failed[0].Details, "allowed_origins")
}

func TestGatewayValidateOrigin_MissingHeaderLogsWarning(t *testing.T) {
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(fakes.NewConfig("https://app.example.dev"), logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	result := g.ValidateOrigin(context.Background(), models.ConnectionRequest{
		Headers:    http.Header{},
		URL:        "/ws",
		RemoteAddr: "10.0.0.1:1234",
	})
	assert.True(t, result.Valid)
	assert.True(t, logger.WarningCalled())
}
