package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/contacts-api/internal/service"
)

// CurrentUser returns an Echo middleware that authenticates a Bearer
// access token and injects the resolved user into the request context.
// Resolution goes through the auth service, so a token that was revoked
// at logout is rejected even while its signature is still valid, and a
// token whose user has been deleted since issuance fails the same way.
// Handlers behind this middleware read the user via handler-level helpers
// from `c.Get("user")`.
func CurrentUser(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(authHeader, "Bearer ")

			u, err := auth.ResolveCurrentUser(c.Request().Context(), raw)
			if err != nil {
				// Every resolution failure collapses to one generic 401 so
				// callers cannot probe which stage rejected the token.
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or revoked token"})
			}

			c.Set("user", u)
			c.Set("role", u.Role)
			// String form for middleware that keys on the user, e.g. the
			// rate limiter.
			c.Set("user_id", strconv.FormatUint(u.ID, 10))
			return next(c)
		}
	}
}
