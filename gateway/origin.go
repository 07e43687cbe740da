package gateway

import (
	"net/http"
	"strings"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

// OriginNotAllowedMessage is the stable denial text for a rejected origin.
const OriginNotAllowedMessage = "Origin not allowed"

// ValidateOrigin checks an Origin header value against an allow-list.
//
// A missing header is accepted: browsers always send Origin on cross-origin
// WebSocket upgrades, so its absence points at a non-browser client rather
// than a hijacking attempt. The gateway logs a warning for those.
//
// Matching is case-insensitive after trimming. An origin matches an entry
// when it equals the entry exactly or is a subdomain of it, i.e. ends with
// "." followed by the entry stripped of its http(s):// scheme.
func ValidateOrigin(origin string, allowedOrigins []string) models.OriginValidationResult {
	if origin == "" {
		return models.OriginValidationResult{Valid: true}
	}

	normalized := strings.ToLower(strings.TrimSpace(origin))
	for _, allowed := range allowedOrigins {
		entry := strings.ToLower(strings.TrimSpace(allowed))
		if normalized == entry {
			return models.OriginValidationResult{Valid: true}
		}
		if strings.HasSuffix(normalized, "."+stripScheme(entry)) {
			return models.OriginValidationResult{Valid: true}
		}
	}

	return models.OriginValidationResult{
		Valid:      false,
		Error:      OriginNotAllowedMessage,
		StatusCode: http.StatusForbidden,
	}
}

func stripScheme(origin string) string {
	origin = strings.TrimPrefix(origin, "https://")
	origin = strings.TrimPrefix(origin, "http://")
	return origin
}
