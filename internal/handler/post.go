package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cms-backend/internal/service"
)

// PostHandler serves the author-scoped post endpoints.  Every route is
// behind JWTAuth and RequireRole("author"); posts of other authors answer
// 404 exactly like missing ones.
type PostHandler struct {
    Posts *service.PostService
}

func NewPostHandler(s *service.PostService) *PostHandler {
    return &PostHandler{Posts: s}
}

type postReq struct {
    Title   string `json:"title"`
    Content string `json:"content"`
}

type scheduleReq struct {
    ScheduledFor string `json:"scheduled_for"`
}

// parseScheduleTime accepts RFC 3339 timestamps; a timestamp without a
// zone is taken as UTC.
func parseScheduleTime(s string) (time.Time, bool) {
    s = strings.TrimSpace(s)
    for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
        if t, err := time.Parse(layout, s); err == nil {
            return t.UTC(), true
        }
    }
    return time.Time{}, false
}

// Create handles POST /posts.
func (h *PostHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    var req postReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    // New posts start as drafts with a unique slug.
    p, err := h.Posts.Create(ctx, uid, req.Title, req.Content)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, p)
}

// List handles GET /posts?skip=&limit=.
func (h *PostHandler) List(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    skip, limit, ok := parsePagination(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "skip must be >= 0 and limit between 1 and 100"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    posts, err := h.Posts.ListMine(ctx, uid, skip, limit)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, posts)
}

// Get handles GET /posts/:id.
func (h *PostHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    p, err := h.Posts.Get(ctx, id, uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// Update handles PUT /posts/:id.
func (h *PostHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req postReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    // The previous title and content are kept as a revision.
    p, err := h.Posts.Update(ctx, id, uid, req.Title, req.Content)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /posts/:id.
func (h *PostHandler) Delete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    if err := h.Posts.Delete(ctx, id, uid); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "post deleted"})
}

// Publish handles POST /posts/:id/publish.
func (h *PostHandler) Publish(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    p, err := h.Posts.Publish(ctx, id, uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// Schedule handles POST /posts/:id/schedule with {"scheduled_for": "..."}.
func (h *PostHandler) Schedule(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req scheduleReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    // Times in the past are rejected later by the lifecycle check.
    at, ok := parseScheduleTime(req.ScheduledFor)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_for must be an RFC 3339 timestamp"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    p, err := h.Posts.Schedule(ctx, id, uid, at)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// Revisions handles GET /posts/:id/revisions.
func (h *PostHandler) Revisions(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    revs, err := h.Posts.Revisions(ctx, id, uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, revs)
}

// Restore handles POST /posts/:id/restore/:revision_id.
func (h *PostHandler) Restore(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    revID, ok := parseID(c, "revision_id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid revision_id"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    p, err := h.Posts.Restore(ctx, id, revID, uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}
