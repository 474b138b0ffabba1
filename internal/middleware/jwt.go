package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // prefix checking and trimming of the Authorization header

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware

    "github.com/iliyamo/cms-backend/internal/utils" // access token parsing
)

// Context keys set by JWTAuth.
const (
    CtxUserID = "user_id" // uint64
    CtxRole   = "role"    // string
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// signed with secret and stores its subject and role in the request context
// under CtxUserID and CtxRole.  Missing or invalid tokens get a 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
    // The outer function runs once when the middleware is registered.
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        // The returned handler runs for every request on the route.
        return func(c echo.Context) error {
            // A valid header is "Bearer <jwt>"; anything else is
            // unauthenticated.
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            // Strip the scheme to get the raw token.
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            // Verify signature, algorithm and expiry.  Any failure is a 401;
            // the cause is not echoed to the client.
            p, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            // Expose the caller to RequireRole and the handlers.
            c.Set(CtxUserID, p.UserID)
            c.Set(CtxRole, p.Role)
            // Continue down the chain.
            return next(c)
        }
    }
}
