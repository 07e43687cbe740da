package gateway

import (
	"github.com/labstack/echo/v4"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

// SecurityContextKey is the Echo context key holding the accepted
// connection's context after WebSocketSecurity has run.
const SecurityContextKey = "securityContext"

// WebSocketSecurity returns an Echo middleware that runs the full security
// pipeline against the upgrade request before the handler performs the
// actual upgrade. Denials are answered with the structured denial body and
// never reach the handler.
func WebSocketSecurity(g *SecurityGateway) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			request := c.Request()

			result := g.PerformSecurityCheck(request.Context(), models.ConnectionRequest{
				Headers:    request.Header,
				URL:        request.URL.RequestURI(),
				RemoteAddr: request.RemoteAddr,
			})

			if !result.Allowed {
				return c.JSON(result.StatusCode, map[string]any{
					"error": result.Error,
					"code":  result.StatusCode,
				})
			}

			c.Set(SecurityContextKey, result.Context)
			return next(c)
		}
	}
}

// SecurityContext retrieves the connection context stored by
// WebSocketSecurity, or nil when the middleware has not run.
func SecurityContext(c echo.Context) *models.ConnectionContext {
	connCtx, ok := c.Get(SecurityContextKey).(*models.ConnectionContext)
	if !ok {
		return nil
	}
	return connCtx
}
