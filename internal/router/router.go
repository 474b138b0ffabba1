package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cms-backend/internal/handler"
	"github.com/iliyamo/cms-backend/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication and
// are not rate limited.  Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers login (rate limited by limiter) and the
// authenticated /auth/me endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/login", a.Login, limiter)
	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the unauthenticated read endpoints.  The
// published routes are static segments under /posts, so they take
// precedence over the author group's /posts/:id.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, limiter echo.MiddlewareFunc) {
	e.GET("/posts/published", p.PublishedList, limiter)
	e.GET("/posts/published/:id", p.PublishedPost, limiter)
	e.GET("/search", p.Search, limiter)
}

// Handlers groups every handler the API exposes.
type Handlers struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Posts  *handler.PostHandler
	Public *handler.PublicHandler
}

// RegisterAll mounts the full API on e.  limiter guards login and the
// public endpoints.
func RegisterAll(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, jwtSecret, limiter)
	RegisterPublic(e, h.Public, limiter)
	RegisterAuthor(e, h.Posts, jwtSecret)
}
