package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

type MockLogger struct {
	mu            sync.Mutex
	events        []models.SecurityAuditEvent
	infoCalled    bool
	warningCalled bool
	errorCalled   bool
	lastMsg       string
}

func (l *MockLogger) Log(ctx context.Context, event models.SecurityAuditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *MockLogger) Info(ctx context.Context, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoCalled = true
	l.lastMsg = fmt.Sprintf(format, args...)
}

func (l *MockLogger) Warning(ctx context.Context, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningCalled = true
	l.lastMsg = fmt.Sprintf(format, args...)
}

func (l *MockLogger) Error(ctx context.Context, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorCalled = true
	l.lastMsg = fmt.Sprintf(format, args...)
}

// Events returns a copy of the audit events logged so far.
func (l *MockLogger) Events() []models.SecurityAuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := make([]models.SecurityAuditEvent, len(l.events))
	copy(events, l.events)
	return events
}

// EventsOfType filters logged events by type.
func (l *MockLogger) EventsOfType(eventType models.SecurityEventType) []models.SecurityAuditEvent {
	var matched []models.SecurityAuditEvent
	for _, event := range l.Events() {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func (l *MockLogger) WarningCalled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warningCalled
}

func (l *MockLogger) LastMsg() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastMsg
}
