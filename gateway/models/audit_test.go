package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecurityAuditEvent_Validate(t *testing.T) {
	valid := SecurityAuditEvent{
		ID:        "evt-1",
		Type:      ConnectionAccepted,
		Timestamp: time.Now(),
	}

	tests := []struct {
		name       string
		mutate     func(*SecurityAuditEvent)
		wantFields []string
	}{
		{
			name:   "complete event",
			mutate: func(e *SecurityAuditEvent) {},
		},
		{
			name:       "missing id",
			mutate:     func(e *SecurityAuditEvent) { e.ID = "" },
			wantFields: []string{"id"},
		},
		{
			name:       "missing type",
			mutate:     func(e *SecurityAuditEvent) { e.Type = "" },
			wantFields: []string{"type"},
		},
		{
			name:       "missing timestamp",
			mutate:     func(e *SecurityAuditEvent) { e.Timestamp = time.Time{} },
			wantFields: []string{"timestamp"},
		},
		{
			name: "everything missing",
			mutate: func(e *SecurityAuditEvent) {
				*e = SecurityAuditEvent{}
			},
			wantFields: []string{"id", "type", "timestamp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := valid
			tt.mutate(&event)

			errs := event.Validate()
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestSecurityAuditEvent_ValidateAllowsEmptyContextFields(t *testing.T) {
	// A close event for an unknown connection id carries no source IP,
	// origin or user, yet must still be shippable.
	event := SecurityAuditEvent{
		ID:           "evt-1",
		ConnectionID: "no-such-connection",
		Type:         ConnectionClosed,
		Timestamp:    time.Now(),
	}
	assert.Empty(t, event.Validate())
}
