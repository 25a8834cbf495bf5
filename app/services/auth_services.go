package services

import (
	"context"
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/auth"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password;
// the two are not distinguished.
var ErrInvalidCredentials = errors.New(errors.CodeUnauthorized, "invalid credentials")

// UserStore is the subset of the user repository the auth service needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// AuthService checks credentials and issues bearer tokens.
type AuthService struct {
	users  UserStore
	issuer *auth.Issuer
}

func NewAuthService(users UserStore, issuer *auth.Issuer) *AuthService {
	return &AuthService{users: users, issuer: issuer}
}

// Login checks email and password and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, models.User, error) {
	id, user, err := s.verify(ctx, email, password)
	if err != nil {
		return "", models.User{}, err
	}
	token, err := s.issuer.GenerateToken(id.UserID, id.Email, id.Role)
	if err != nil {
		return "", models.User{}, errors.Wrap(err, errors.CodeInternal, "sign token")
	}
	return token, user, nil
}

// CheckPassword authenticates HTTP Basic credentials.
func (s *AuthService) CheckPassword(ctx context.Context, email, password string) (auth.Identity, error) {
	id, _, err := s.verify(ctx, email, password)
	return id, err
}

// CheckToken authenticates a bearer token.
func (s *AuthService) CheckToken(_ context.Context, token string) (auth.Identity, error) {
	claims, err := s.issuer.ValidateToken(token)
	if err != nil {
		return auth.Identity{}, errors.Wrap(err, errors.CodeUnauthorized, "invalid token")
	}
	return auth.Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// Register creates a user with a hashed password.
func (s *AuthService) Register(ctx context.Context, name, email, password, role string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case email == "":
		return models.User{}, errors.New(errors.CodeInvalidInput, "email is required")
	case len(password) < 8:
		return models.User{}, errors.New(errors.CodeInvalidInput, "password must be at least 8 characters")
	}
	switch role {
	case "":
		role = models.RoleViewer
	case models.RoleAdmin, models.RoleEditor, models.RoleViewer:
	default:
		return models.User{}, errors.Newf(errors.CodeInvalidInput, "unknown role %q", role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, errors.Wrap(err, errors.CodeInvalidInput, "password rejected")
	}

	user := models.User{Name: name, Email: email, Password: hash, Role: role}
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *AuthService) verify(ctx context.Context, email, password string) (auth.Identity, models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repositories.IsNotFound(err) {
			return auth.Identity{}, models.User{}, ErrInvalidCredentials
		}
		return auth.Identity{}, models.User{}, err
	}
	if !auth.CheckPassword(user.Password, password) {
		return auth.Identity{}, models.User{}, ErrInvalidCredentials
	}
	return auth.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, user, nil
}
