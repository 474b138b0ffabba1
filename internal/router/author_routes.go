package router // router defines how HTTP routes are registered for the API

import (
	"github.com/iliyamo/cms-backend/internal/handler"    // post handlers
	"github.com/iliyamo/cms-backend/internal/middleware" // JWT + role middlewares
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/labstack/echo/v4"
)

// RegisterAuthor registers author-scoped post endpoints under /posts.
// All routes require a valid JWT and the author role.
func RegisterAuthor(e *echo.Echo, p *handler.PostHandler, jwtSecret string) {
	g := e.Group(
		"/posts",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(string(model.RoleAuthor)),
	)

	// ---- CRUD ----
	g.POST("", p.Create)
	g.GET("", p.List)
	g.GET("/:id", p.Get)
	g.PUT("/:id", p.Update)
	g.DELETE("/:id", p.Delete)

	// ---- Lifecycle ----
	g.POST("/:id/publish", p.Publish)
	g.POST("/:id/schedule", p.Schedule)

	// ---- Revisions ----
	g.GET("/:id/revisions", p.Revisions)
	g.POST("/:id/restore/:revision_id", p.Restore)
}
