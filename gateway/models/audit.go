package models

import (
	"time"
)

// SecurityEventType Enum-like constants
type SecurityEventType string

const (
	OriginValidationPassed SecurityEventType = "origin.validation.passed"
	OriginValidationFailed SecurityEventType = "origin.validation.failed"
	AuthenticationPassed   SecurityEventType = "authentication.passed"
	AuthenticationFailed   SecurityEventType = "authentication.failed"
	RateLimitExceeded      SecurityEventType = "ratelimit.exceeded"
	ConnectionAccepted     SecurityEventType = "connection.accepted"
	ConnectionClosed       SecurityEventType = "connection.closed"
)

// SecurityAuditEvent is the immutable record of one security decision.
// Events are append-only; the gateway hands them to the configured logger
// (and Kafka producer, when one is wired) and retains nothing itself.
type SecurityAuditEvent struct {
	// Identity
	ID           string `json:"id"`
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id,omitempty"`

	// Decision
	Type    SecurityEventType `json:"type"`
	Blocked bool              `json:"blocked"`

	// Request Context
	SourceIP  string    `json:"source_ip"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Arbitrary structured detail (allow-list on origin failure,
	// quota numbers on rate-limit denial, session stats on close).
	Details map[string]any `json:"details,omitempty"`
}

// Validate reports the fields a shippable event must carry. Context fields
// (source IP, origin, user) stay optional: a close event for an unknown
// connection id legitimately has none of them.
func (e *SecurityAuditEvent) Validate() []ValidationError {
	var errs []ValidationError
	if e.ID == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "Required.",
		})
	}

	if e.Type == "" {
		errs = append(errs, ValidationError{
			Field:   "type",
			Message: "Required.",
		})
	}

	if e.Timestamp.IsZero() {
		errs = append(errs, ValidationError{
			Field:   "timestamp",
			Message: "Required.",
		})
	}

	return errs
}
