package models

import "net/http"

// ConnectionRequest is the transport-agnostic view of a WebSocket upgrade
// attempt. The host server builds one from whatever request object its
// framework hands it; the gateway never sees the underlying transport.
type ConnectionRequest struct {
	// Headers as received. http.Header lookup is case-insensitive, which
	// matches how the upgrade headers must be read.
	Headers http.Header `json:"-"`

	// URL may be a relative path ("/ws?token=...") or an absolute
	// ws:// / wss:// URL.
	URL string `json:"url"`

	// RemoteAddr is the underlying transport's peer address, used as the
	// IP fallback when no forwarding headers are present.
	RemoteAddr string `json:"remote_addr"`
}

// OriginValidationResult is the outcome of an origin check.
type OriginValidationResult struct {
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// AuthResult is the outcome of token authentication.
type AuthResult struct {
	Success    bool               `json:"success"`
	User       *AuthenticatedUser `json:"user,omitempty"`
	Error      string             `json:"error,omitempty"`
	StatusCode int                `json:"status_code,omitempty"`
}

// SecurityCheckResult is the outcome of the full admission pipeline.
// On denial, Error and StatusCode describe the first failing stage.
type SecurityCheckResult struct {
	Allowed    bool               `json:"allowed"`
	Context    *ConnectionContext `json:"context,omitempty"`
	Error      string             `json:"error,omitempty"`
	StatusCode int                `json:"status_code,omitempty"`
}
