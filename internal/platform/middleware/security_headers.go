package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets hardening headers on every response. Report exports
// are HTML documents opened directly in a browser, so those responses get a
// CSP that permits the document's own inline styles instead of the deny-all
// policy applied to JSON endpoints.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Responses carry patient data; never let intermediaries cache them.
			h.Set("Cache-Control", "no-store")

			if isDocumentPath(c.Request().URL.Path) {
				h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
			} else {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}

			return next(c)
		}
	}
}

func isDocumentPath(path string) bool {
	return strings.HasSuffix(path, "/export")
}
