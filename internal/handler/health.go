package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the service and its backing stores are
// reachable.  Redis is optional: a nil client is reported as "disabled".
type HealthHandler struct {
    DB    *sql.DB
    Redis *redis.Client
}

// Health returns 200 with per-dependency status, or 503 when the database
// cannot be reached.  Redis being down degrades the cache but not the
// service, so it never fails the check.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    resp := echo.Map{"status": "ok", "db": "ok", "cache": "disabled"}
    if h.DB != nil {
        if err := h.DB.PingContext(ctx); err != nil {
            status = http.StatusServiceUnavailable
            resp["status"], resp["db"] = "degraded", err.Error()
        }
    }
    if h.Redis != nil {
        resp["cache"] = "ok"
        if err := h.Redis.Ping(ctx).Err(); err != nil {
            resp["cache"] = err.Error()
        }
    }
    return c.JSON(status, resp)
}
