package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cms-backend/internal/lifecycle"
    "github.com/iliyamo/cms-backend/internal/middleware"
    "github.com/iliyamo/cms-backend/internal/repository"
    "github.com/iliyamo/cms-backend/internal/service"
    "github.com/iliyamo/cms-backend/internal/utils"
)

// Pagination bounds for list endpoints.
const (
    DefaultLimit = 10
    MaxLimit     = 100
)

// requestTimeout bounds the store work done for a single request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID extracts the user_id stored by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get(middleware.CtxUserID).(type) {
    case uint64:
        return t, nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive integer path parameter.  Ids are stored as
// signed 64-bit integers, so anything above math.MaxInt64 is rejected here
// instead of failing in the driver.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 63)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// parsePagination reads skip (>= 0, default 0) and limit (1..100, default
// 10) from the query string.
func parsePagination(c echo.Context) (skip, limit int, ok bool) {
    skip, limit = 0, DefaultLimit
    if v := c.QueryParam("skip"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 0 {
            return 0, 0, false
        }
        skip = n
    }
    if v := c.QueryParam("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 || n > MaxLimit {
            return 0, 0, false
        }
        limit = n
    }
    return skip, limit, true
}

// writeError maps domain errors onto HTTP responses.  Anything unknown is
// logged and reported as a 500 without details.
func writeError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrPostNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
    case errors.Is(err, repository.ErrRevisionNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "revision not found"})
    case errors.Is(err, lifecycle.ErrScheduleInPast), errors.Is(err, service.ErrInvalidInput):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, lifecycle.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "slug conflict, retry the request"})
    case errors.Is(err, repository.ErrInvalidCredentials):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
    case errors.Is(err, utils.ErrInvalidToken):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
    case errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
    }
    c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// writeCached sends a serialized JSON payload as is and marks whether it
// came from the cache.
func writeCached(c echo.Context, payload []byte, hit bool) error {
    if hit {
        c.Response().Header().Set("X-Cache", "HIT")
    } else {
        c.Response().Header().Set("X-Cache", "MISS")
    }
    return c.JSONBlob(http.StatusOK, payload)
}
