package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/contacts-api/internal/config"
	"github.com/iliyamo/contacts-api/internal/handler"
	"github.com/iliyamo/contacts-api/internal/middleware"
	"github.com/iliyamo/contacts-api/internal/model"
	"github.com/iliyamo/contacts-api/internal/service"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health checks used by load balancers
// and monitoring.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/api/healthchecker", health.Healthchecker)
}

// RegisterAuth registers the authentication endpoints.  Unauthenticated
// session operations live under /api/auth; logout also lives there but
// reads the bearer header itself so repeated calls stay idempotent.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
}

// RegisterUsers registers profile and confirmation endpoints.  The
// confirmation routes are public — the signed token in the link is the
// proof of ownership — while /me and the role demos require a valid,
// unrevoked access token.  /me additionally sits behind the Redis token
// bucket to bound probing of the profile endpoint.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, auth *service.AuthService, rdb *redis.Client) {
	g := e.Group("/api/users")
	g.GET("/confirmed_email/:token", u.ConfirmEmail)
	g.POST("/request_email", u.RequestEmail)

	protected := g.Group("")
	protected.Use(middleware.CurrentUser(auth))
	protected.GET("/me", u.Me, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	protected.GET("/moderator", u.Moderator, middleware.RequireRole(model.RoleModerator, model.RoleAdmin))
	protected.GET("/admin", u.Admin, middleware.RequireRole(model.RoleAdmin))
}

// RegisterContacts registers the address-book endpoints.  All of them
// require authentication; ownership scoping happens in the repository.
func RegisterContacts(e *echo.Echo, h *handler.ContactHandler, auth *service.AuthService) {
	g := e.Group("/api/contacts")
	g.Use(middleware.CurrentUser(auth))
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/search/", h.Search)
	g.GET("/upcoming_birthdays/", h.UpcomingBirthdays)
	g.GET("/birthdays/", h.Birthdays)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
