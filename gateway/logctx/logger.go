package logctx

import (
	"context"
	"encoding/json"

	glog "github.com/labstack/gommon/log"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

// Logger is the default console implementation of interfaces.Logger.
// Audit events are printed as single-line JSON; blocked decisions go to the
// warning level so they stand out in plain log tails.
type Logger struct {
	out *glog.Logger
}

func New(prefix string) *Logger {
	return &Logger{out: glog.New(prefix)}
}

func (l *Logger) Log(ctx context.Context, event models.SecurityAuditEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		l.out.Errorf("failed to marshal audit event %s: %v", event.ID, err)
		return
	}

	if event.Blocked {
		l.out.Warnf("%s", raw)
	} else {
		l.out.Infof("%s", raw)
	}
}

func (l *Logger) Info(ctx context.Context, format string, args ...any) {
	l.out.Infof(format, args...)
}

func (l *Logger) Warning(ctx context.Context, format string, args ...any) {
	l.out.Warnf(format, args...)
}

func (l *Logger) Error(ctx context.Context, format string, args ...any) {
	l.out.Errorf(format, args...)
}
