package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cms-backend/internal/service"
)

// PublicHandler serves the unauthenticated read endpoints.  Lists and
// single posts are answered through the read-through cache; search always
// reads the database.
type PublicHandler struct {
    Posts *service.PostService
}

func NewPublicHandler(s *service.PostService) *PublicHandler {
    return &PublicHandler{Posts: s}
}

// PublishedList handles GET /posts/published?skip=&limit=.
func (h *PublicHandler) PublishedList(c echo.Context) error {
    // Validate paging before the cache key is built from it.
    skip, limit, ok := parsePagination(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "skip must be >= 0 and limit between 1 and 100"})
    }
    // Bound the store work for this request.
    ctx, cancel := requestContext(c)
    defer cancel()

    // Served from list:<skip>:<limit> when cached, from the database otherwise.
    payload, hit, err := h.Posts.PublishedList(ctx, skip, limit)
    if err != nil {
        return writeError(c, err)
    }
    return writeCached(c, payload, hit)
}

// PublishedPost handles GET /posts/published/:id.
func (h *PublicHandler) PublishedPost(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    // Drafts and scheduled posts come back as not found and are never cached.
    payload, hit, err := h.Posts.PublishedPost(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    // Write the cached bytes as they are.
    return writeCached(c, payload, hit)
}

// Search handles GET /search?q=.
func (h *PublicHandler) Search(c echo.Context) error {
    ctx, cancel := requestContext(c)
    defer cancel()

    // A blank query is rejected by the service with a 400.
    posts, err := h.Posts.Search(ctx, c.QueryParam("q"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, posts)
}
