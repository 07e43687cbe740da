package gateway_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
	"github.com/grasp-labs/ds-go-ws-gateway/internal/fakes"
)

const testOrigin = "https://app.example.dev"

func upgradeRequest(t *testing.T, origin string) models.ConnectionRequest {
	t.Helper()
	token, err := fakes.UserToken(fakes.TestSecret, "u1", "u1@x.com")
	require.NoError(t, err)

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	headers.Set("User-Agent", "test-agent")

	return models.ConnectionRequest{
		Headers:    headers,
		URL:        "/ws?token=" + token,
		RemoteAddr: "10.0.0.1:1234",
	}
}

func TestNewSecurityGateway_RejectsInvalidConfig(t *testing.T) {
	cfg := fakes.NewConfig(testOrigin)
	cfg.TokenSecret = "short"

	_, err := gateway.NewSecurityGateway(cfg, &fakes.MockLogger{}, nil, nil)
	require.Error(t, err)

	cfg = fakes.NewConfig(testOrigin, "  ")
	_, err = gateway.NewSecurityGateway(cfg, &fakes.MockLogger{}, nil, nil)
	require.Error(t, err)
}

func TestPerformSecurityCheck_FullPipelinePasses(t *testing.T) {
	logger := &fakes.MockLogger{}
	producer := &fakes.MockProducer{}
	g, err := gateway.NewSecurityGateway(fakes.NewConfig(testOrigin), logger, nil, producer)
	require.NoError(t, err)
	defer g.Shutdown()

	result := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, testOrigin))
	require.True(t, result.Allowed)
	require.NotNil(t, result.Context)
	require.NotNil(t, result.Context.User)
	assert.Equal(t, "u1", result.Context.User.ID)
	assert.Equal(t, testOrigin, result.Context.Origin)
	assert.Equal(t, "10.0.0.1:1234", result.Context.IP)

	// The attempt is registered and audited.
	_, ok := g.GetConnectionContext(result.Context.ConnectionID)
	assert.True(t, ok)
	assert.Len(t, logger.EventsOfType(models.ConnectionAccepted), 1)
	assert.True(t, producer.Called())

	// Everything that reached the logger passed event validation.
	for _, event := range logger.Events() {
		assert.Empty(t, event.Validate())
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestPerformSecurityCheck_BadOriginShortCircuits(t *testing.T) {
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(fakes.NewConfig(testOrigin), logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	result := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, "https://evil.com"))
	require.False(t, result.Allowed)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Contains(t, result.Error, "not allowed")

	// Token verification never ran: no authentication events of any kind.
	assert.Empty(t, logger.EventsOfType(models.AuthenticationPassed))
	assert.Empty(t, logger.EventsOfType(models.AuthenticationFailed))
	assert.Empty(t, g.GetActiveConnections())
}

func TestPerformSecurityCheck_MissingToken(t *testing.T) {
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(fakes.NewConfig(testOrigin), logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	req := upgradeRequest(t, testOrigin)
	req.URL = "/ws"

	result := g.PerformSecurityCheck(context.Background(), req)
	require.False(t, result.Allowed)
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)

	failed := logger.EventsOfType(models.AuthenticationFailed)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Blocked)
	assert.Empty(t, g.GetActiveConnections())
}

func TestPerformSecurityCheck_ConnectionQuotaDenial(t *testing.T) {
	cfg := fakes.NewConfig(testOrigin)
	cfg.UserConnectionQuota = fakes.NewQuota(time.Minute, 1)
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(cfg, logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	first := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, testOrigin))
	require.True(t, first.Allowed)

	second := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, testOrigin))
	require.False(t, second.Allowed)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	// The denied attempt's context must not linger in the registry.
	assert.Len(t, g.GetActiveConnections(), 1)
	require.Len(t, logger.EventsOfType(models.RateLimitExceeded), 1)
}

func TestCheckMessageRateLimit_UpdatesConnectionActivity(t *testing.T) {
	g, err := gateway.NewSecurityGateway(fakes.NewConfig(testOrigin), &fakes.MockLogger{}, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	accepted := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, testOrigin))
	require.True(t, accepted.Allowed)
	id := accepted.Context.ConnectionID

	result := g.CheckMessageRateLimit(context.Background(), id, "CHAT")
	require.True(t, result.Allowed)

	connCtx, ok := g.GetConnectionContext(id)
	require.True(t, ok)
	assert.Equal(t, int64(1), connCtx.MessageCount)
	assert.False(t, connCtx.LastActivity.Before(connCtx.ConnectionTime))
}

func TestHandleConnectionClose_ReleasesAndAudits(t *testing.T) {
	cfg := fakes.NewConfig(testOrigin)
	cfg.UserConnectionQuota = fakes.NewQuota(time.Minute, 1)
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(cfg, logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	accepted := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, testOrigin))
	require.True(t, accepted.Allowed)
	id := accepted.Context.ConnectionID

	g.HandleConnectionClose(context.Background(), id)

	_, ok := g.GetConnectionContext(id)
	assert.False(t, ok)

	closed := logger.EventsOfType(models.ConnectionClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "u1", closed[0].UserID)
	assert.Contains(t, closed[0].Details, "session_duration")
	assert.Contains(t, closed[0].Details, "message_count")

	// The released quota admits a new connection right away.
	again := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, testOrigin))
	assert.True(t, again.Allowed)
}

func TestHandleConnectionClose_IdempotentForUnknownID(t *testing.T) {
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(fakes.NewConfig(testOrigin), logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	g.HandleConnectionClose(context.Background(), "no-such-connection")
	g.HandleConnectionClose(context.Background(), "no-such-connection")

	closed := logger.EventsOfType(models.ConnectionClosed)
	require.Len(t, closed, 2)
	assert.Empty(t, closed[0].SourceIP)
	assert.Empty(t, closed[0].UserID)
	assert.Nil(t, closed[0].Details)
}

func TestAudit_DisabledLogging(t *testing.T) {
	cfg := fakes.NewConfig(testOrigin)
	cfg.LoggingEnabled = false
	logger := &fakes.MockLogger{}
	g, err := gateway.NewSecurityGateway(cfg, logger, nil, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	result := g.PerformSecurityCheck(context.Background(), upgradeRequest(t, testOrigin))
	require.True(t, result.Allowed)
	assert.Empty(t, logger.Events())
}

func TestClientIP_Precedence(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
		remote  string
		want    string
	}{
		{
			name:    "forwarded-for wins",
			headers: http.Header{"X-Forwarded-For": []string{"203.0.113.5, 10.0.0.1"}, "X-Real-Ip": []string{"198.51.100.7"}},
			remote:  "10.0.0.1:1234",
			want:    "203.0.113.5",
		},
		{
			name:    "real-ip next",
			headers: http.Header{"X-Real-Ip": []string{"198.51.100.7"}},
			remote:  "10.0.0.1:1234",
			want:    "198.51.100.7",
		},
		{
			name:    "remote addr fallback",
			headers: http.Header{},
			remote:  "10.0.0.1:1234",
			want:    "10.0.0.1:1234",
		},
		{
			name:    "unknown when nothing available",
			headers: http.Header{},
			remote:  "",
			want:    "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := gateway.ClientIP(models.ConnectionRequest{Headers: tt.headers, RemoteAddr: tt.remote})
			assert.Equal(t, tt.want, ip)
		})
	}
}
