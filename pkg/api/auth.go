package api

import (
	echo "github.com/labstack/echo/v5"
)

// resolveUserID returns the caller's identity for rate-limiting and
// shield state, preferring headers set by an upstream auth proxy
// (oauth2-proxy) over a body-supplied field so a client can't spoof
// another user's identity by claiming their id in the request body.
// Falls back to bodyUserID, then "anonymous", so unauthenticated
// deployments still get a stable (if shared) rate-limit/shield scope.
func resolveUserID(c *echo.Context, bodyUserID string) string {
	if user := c.Request().Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.Request().Header.Get("X-Forwarded-Email"); email != "" {
		return email
	}
	if bodyUserID != "" {
		return bodyUserID
	}
	return "anonymous"
}
