package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/repository"
	"github.com/iliyamo/cms-backend/internal/utils"
)

// AuthService authenticates users and issues and verifies access tokens.
type AuthService struct {
	users  *repository.UserRepo
	secret string
	ttlMin int
}

// NewAuthService returns an AuthService signing tokens with secret that
// stay valid for ttlMin minutes.
func NewAuthService(users *repository.UserRepo, secret string, ttlMin int) *AuthService {
	return &AuthService{users: users, secret: secret, ttlMin: ttlMin}
}

// Login checks the credentials and returns the user with a fresh token.
// Unknown emails and wrong passwords are both ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.User, utils.AccessToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.User{}, utils.AccessToken{}, repository.ErrInvalidCredentials
	}
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return model.User{}, utils.AccessToken{}, err
	}
	tok, err := s.IssueToken(u)
	if err != nil {
		return model.User{}, utils.AccessToken{}, err
	}
	return u, tok, nil
}

// IssueToken signs an access token for u.
func (s *AuthService) IssueToken(u model.User) (utils.AccessToken, error) {
	return utils.NewAccessToken(s.secret, u.ID, string(u.Role), s.ttlMin)
}

// VerifyToken resolves a bearer token to its principal.
func (s *AuthService) VerifyToken(raw string) (utils.Principal, error) {
	return utils.ParseAccessToken(s.secret, raw)
}

// CurrentUser loads the user behind a verified principal.  A token whose
// user has since been removed is treated as invalid.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, utils.ErrInvalidToken
	}
	return u, err
}
