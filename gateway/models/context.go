package models

import "time"

// ConnectionContext is the per-connection record maintained for the lifetime
// of one accepted connection. It is owned exclusively by the gateway's
// registry; other components read it through the gateway's accessors.
type ConnectionContext struct {
	ConnectionID   string             `json:"connection_id"`
	User           *AuthenticatedUser `json:"user,omitempty"`
	IP             string             `json:"ip"`
	Origin         string             `json:"origin"`
	UserAgent      string             `json:"user_agent"`
	ConnectionTime time.Time          `json:"connection_time"`
	LastActivity   time.Time          `json:"last_activity"`
	MessageCount   int64              `json:"message_count"`
}
