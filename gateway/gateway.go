// Package gateway decides, before a WebSocket upgrade completes, whether an
// inbound connection attempt may proceed, and thereafter polices the volume
// of messages exchanged on that connection.
//
// Every attempt runs the same fixed pipeline: origin validation, token
// authentication, connection-level rate limiting. The first failing stage
// short-circuits the rest and is reported as a structured denial (message
// plus status code); the gateway never touches the transport itself — the
// host server translates the verdict into accepting or rejecting the
// upgrade.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/interfaces"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/store"
)

// SecurityGateway composes the origin validator, token authenticator and
// rate limiter into a single admission pipeline, and owns the registry of
// live authenticated connections.
type SecurityGateway struct {
	cfg      Config
	logger   interfaces.Logger
	producer interfaces.Producer
	auth     *TokenAuthenticator
	limiter  *RateLimiter

	mu          sync.RWMutex
	connections map[string]*models.ConnectionContext
}

// NewSecurityGateway validates the configuration and builds the gateway.
// A nil rateLimitStore selects the in-process backend; producer is optional
// and, when set, receives every audit event keyed by connection id.
func NewSecurityGateway(cfg Config, logger interfaces.Logger, rateLimitStore interfaces.RateLimitStore, producer interfaces.Producer) (*SecurityGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	auth, err := NewTokenAuthenticator(cfg, logger)
	if err != nil {
		return nil, err
	}

	if rateLimitStore == nil {
		rateLimitStore = store.NewMemoryStore(cfg.SweepInterval)
	}

	return &SecurityGateway{
		cfg:         cfg,
		logger:      logger,
		producer:    producer,
		auth:        auth,
		limiter:     NewRateLimiter(cfg, rateLimitStore, logger),
		connections: make(map[string]*models.ConnectionContext),
	}, nil
}

// Shutdown stops background work owned by the gateway (the in-process
// store's sweep). Live connection state is left untouched.
func (g *SecurityGateway) Shutdown() {
	g.limiter.Stop()
}

// RateLimiter exposes the limiter for administrative operations
// (ResetRateLimit, GetRateLimitStatus).
func (g *SecurityGateway) RateLimiter() *RateLimiter {
	return g.limiter
}

// ClientIP resolves the client address of a connection request: first entry
// of X-Forwarded-For, then X-Real-IP, then the transport peer address.
func ClientIP(req models.ConnectionRequest) string {
	if forwarded := req.Headers.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := req.Headers.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if req.RemoteAddr != "" {
		return req.RemoteAddr
	}
	return "unknown"
}

// ValidateOrigin runs the origin check for a connection attempt and emits
// the corresponding audit event.
func (g *SecurityGateway) ValidateOrigin(ctx context.Context, req models.ConnectionRequest) models.OriginValidationResult {
	origin := req.Headers.Get("Origin")
	ip := ClientIP(req)

	if origin == "" {
		g.logger.Warning(ctx, "Connection attempt without Origin header from %s", ip)
	}

	result := ValidateOrigin(origin, g.cfg.AllowedOrigins)
	if result.Valid {
		g.audit(ctx, models.SecurityAuditEvent{
			Type:     models.OriginValidationPassed,
			SourceIP: ip,
			Origin:   origin,
		})
	} else {
		g.audit(ctx, models.SecurityAuditEvent{
			Type:     models.OriginValidationFailed,
			Blocked:  true,
			SourceIP: ip,
			Origin:   origin,
			Details: map[string]any{
				"allowed_origins": g.cfg.AllowedOrigins,
			},
		})
	}
	return result
}

// Authenticate verifies the request's token and, on success, registers a
// fresh connection context for the attempt.
func (g *SecurityGateway) Authenticate(ctx context.Context, req models.ConnectionRequest) (models.AuthResult, *models.ConnectionContext) {
	ip := ClientIP(req)
	origin := req.Headers.Get("Origin")

	result := g.auth.Authenticate(ctx, req)
	if !result.Success {
		g.audit(ctx, models.SecurityAuditEvent{
			Type:     models.AuthenticationFailed,
			Blocked:  true,
			SourceIP: ip,
			Origin:   origin,
			Details:  map[string]any{"error": result.Error},
		})
		return result, nil
	}

	now := time.Now().UTC()
	connCtx := &models.ConnectionContext{
		ConnectionID:   uuid.New().String(),
		User:           result.User,
		IP:             ip,
		Origin:         origin,
		UserAgent:      req.Headers.Get("User-Agent"),
		ConnectionTime: now,
		LastActivity:   now,
	}

	g.mu.Lock()
	g.connections[connCtx.ConnectionID] = connCtx
	g.mu.Unlock()

	g.audit(ctx, models.SecurityAuditEvent{
		Type:         models.AuthenticationPassed,
		ConnectionID: connCtx.ConnectionID,
		UserID:       result.User.ID,
		SourceIP:     ip,
		Origin:       origin,
	})

	snapshot := *connCtx
	return result, &snapshot
}

// CheckConnectionRateLimit checks admission quotas for a user/IP pair and
// audits a denial.
func (g *SecurityGateway) CheckConnectionRateLimit(ctx context.Context, userID, ip string) models.RateLimitResult {
	result, err := g.limiter.CheckConnectionRateLimit(ctx, userID, ip)
	if err != nil {
		g.logger.Error(ctx, "Connection rate limit check failed for user %s: %v", userID, err)
		// A broken store must not admit unbounded connections.
		return models.RateLimitResult{Allowed: false, RetryAfter: 1}
	}

	if !result.Allowed {
		g.audit(ctx, models.SecurityAuditEvent{
			Type:     models.RateLimitExceeded,
			Blocked:  true,
			UserID:   userID,
			SourceIP: ip,
			Details: map[string]any{
				"scope":       "connection",
				"retry_after": result.RetryAfter,
			},
		})
	}
	return result
}

// CheckMessageRateLimit checks one inbound message against its type's quota.
// On success the connection's activity counters are updated; on denial an
// audit event is emitted and the connection stays open.
func (g *SecurityGateway) CheckMessageRateLimit(ctx context.Context, connectionID, messageType string) models.RateLimitResult {
	result, err := g.limiter.CheckMessageRateLimit(ctx, connectionID, messageType)
	if err != nil {
		g.logger.Error(ctx, "Message rate limit check failed for connection %s: %v", connectionID, err)
		return models.RateLimitResult{Allowed: false, RetryAfter: 1}
	}

	g.mu.Lock()
	connCtx, known := g.connections[connectionID]
	if known && result.Allowed {
		connCtx.MessageCount++
		connCtx.LastActivity = time.Now().UTC()
	}
	var ip, userID string
	if known {
		ip = connCtx.IP
		if connCtx.User != nil {
			userID = connCtx.User.ID
		}
	}
	g.mu.Unlock()

	if !result.Allowed {
		g.audit(ctx, models.SecurityAuditEvent{
			Type:         models.RateLimitExceeded,
			Blocked:      true,
			ConnectionID: connectionID,
			UserID:       userID,
			SourceIP:     ip,
			Details: map[string]any{
				"scope":        "message",
				"message_type": messageType,
				"retry_after":  result.RetryAfter,
			},
		})
	}
	return result
}

// PerformSecurityCheck runs the full admission pipeline in fixed order:
// origin, authentication, connection rate limit. The first denial is
// returned without executing later stages.
func (g *SecurityGateway) PerformSecurityCheck(ctx context.Context, req models.ConnectionRequest) models.SecurityCheckResult {
	originResult := g.ValidateOrigin(ctx, req)
	if !originResult.Valid {
		return models.SecurityCheckResult{
			Allowed:    false,
			Error:      originResult.Error,
			StatusCode: originResult.StatusCode,
		}
	}

	authResult, connCtx := g.Authenticate(ctx, req)
	if !authResult.Success {
		return models.SecurityCheckResult{
			Allowed:    false,
			Error:      authResult.Error,
			StatusCode: authResult.StatusCode,
		}
	}

	rateResult := g.CheckConnectionRateLimit(ctx, authResult.User.ID, connCtx.IP)
	if !rateResult.Allowed {
		// The attempt is over; the context registered on authentication
		// must not outlive it.
		g.mu.Lock()
		delete(g.connections, connCtx.ConnectionID)
		g.mu.Unlock()

		return models.SecurityCheckResult{
			Allowed:    false,
			Error:      RateLimitExceededMessage,
			StatusCode: http.StatusTooManyRequests,
		}
	}

	g.audit(ctx, models.SecurityAuditEvent{
		Type:         models.ConnectionAccepted,
		ConnectionID: connCtx.ConnectionID,
		UserID:       authResult.User.ID,
		SourceIP:     connCtx.IP,
		Origin:       connCtx.Origin,
		Details: map[string]any{
			"session_id": authResult.User.SessionID,
			"remaining":  rateResult.Remaining,
		},
	})

	return models.SecurityCheckResult{
		Allowed: true,
		Context: connCtx,
	}
}

// HandleConnectionClose releases a closed connection: the admission counters
// are decremented (in-process backend only), the registry entry is removed
// and a final audit event is emitted. Safe to call with an unknown id.
func (g *SecurityGateway) HandleConnectionClose(ctx context.Context, connectionID string) {
	g.mu.Lock()
	connCtx, known := g.connections[connectionID]
	if known {
		delete(g.connections, connectionID)
	}
	g.mu.Unlock()

	event := models.SecurityAuditEvent{
		Type:         models.ConnectionClosed,
		ConnectionID: connectionID,
	}

	if known {
		event.SourceIP = connCtx.IP
		event.Origin = connCtx.Origin
		event.Details = map[string]any{
			"session_duration": time.Since(connCtx.ConnectionTime).String(),
			"message_count":    connCtx.MessageCount,
		}
		if connCtx.User != nil {
			event.UserID = connCtx.User.ID
			g.limiter.ReleaseConnection(ctx, connCtx.User.ID, connCtx.IP)
		}
	}

	g.audit(ctx, event)
}

// GetConnectionContext returns a snapshot of a live connection's context.
func (g *SecurityGateway) GetConnectionContext(connectionID string) (models.ConnectionContext, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	connCtx, ok := g.connections[connectionID]
	if !ok {
		return models.ConnectionContext{}, false
	}
	return *connCtx, true
}

// GetActiveConnections returns snapshots of all live connections.
func (g *SecurityGateway) GetActiveConnections() []models.ConnectionContext {
	g.mu.RLock()
	defer g.mu.RUnlock()

	active := make([]models.ConnectionContext, 0, len(g.connections))
	for _, connCtx := range g.connections {
		active = append(active, *connCtx)
	}
	return active
}

func (g *SecurityGateway) audit(ctx context.Context, event models.SecurityAuditEvent) {
	if !g.cfg.LoggingEnabled {
		return
	}

	event.ID = uuid.New().String()
	event.Timestamp = time.Now().UTC()

	if errs := event.Validate(); len(errs) > 0 {
		g.logger.Error(ctx, "Dropping malformed audit event %s: %v", event.ID, errs)
		return
	}

	g.logger.Log(ctx, event)

	if g.producer != nil {
		if err := g.producer.Send(ctx, event.ConnectionID, event); err != nil {
			g.logger.Error(ctx, "Failed to send audit event %s to producer: %v", event.ID, err)
		}
	}
}
