package handler // handler contains the HTTP handlers for the API

import (
    "net/http" // HTTP status codes
    "time"     // token expiry in the login response

    "github.com/labstack/echo/v4" // Echo context and helpers

    "github.com/iliyamo/cms-backend/internal/model"   // user returned to the client
    "github.com/iliyamo/cms-backend/internal/service" // authentication service
)

// AuthHandler serves login and the current-user endpoint.
type AuthHandler struct {
    Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
    return &AuthHandler{Auth: a}
}

// loginReq is the JSON body of POST /auth/login.
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

// loginResp carries the bearer token, its expiry and the user it belongs to.
type loginResp struct {
    Token   string     `json:"token"`
    Expires time.Time  `json:"expires"`
    User    model.User `json:"user"`
}

// Login verifies the credentials and returns a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
    // Decode the JSON body; malformed input is a client error.
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    // Both fields are required before touching the database.
    if req.Email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }

    ctx, cancel := requestContext(c)
    defer cancel()

    // Unknown email and wrong password both map to 401 in writeError.
    u, tok, err := h.Auth.Login(ctx, req.Email, req.Password)
    if err != nil {
        return writeError(c, err)
    }
    // Return the token together with the public view of the user.
    return c.JSON(http.StatusOK, loginResp{
        Token:   tok.Token,
        Expires: tok.Exp,
        User:    u,
    })
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    ctx, cancel := requestContext(c)
    defer cancel()

    // A token for a deleted user is treated as invalid.
    u, err := h.Auth.CurrentUser(ctx, uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}
