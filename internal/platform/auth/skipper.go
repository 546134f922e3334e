package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns that bypass authentication. These are
// infrastructure endpoints (health checks) and the share-token report
// surface, where possession of a valid token is the credential.
var publicPaths = map[string]bool{
	"/health":                       true,
	"/health/db":                    true,
	"/api/v1/reports/:token":        true,
	"/api/v1/reports/:token/export": true,
	"/ws/progress":                  true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass this as the Skipper on JWTConfig so health checks and
// shared-report routes remain accessible without a bearer token.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the given route pattern bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
