package interfaces

import (
	"context"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

// Logger is the security logging capability injected into the gateway.
// Log receives every audit event; Info/Warning/Error carry operational
// messages around the decision points.
type Logger interface {
	Log(ctx context.Context, event models.SecurityAuditEvent)
	Info(ctx context.Context, format string, args ...any)
	Warning(ctx context.Context, format string, args ...any)
	Error(ctx context.Context, format string, args ...any)
}
