// Package identity implements account registration, authentication, and
// session lifecycle. Role assignment is out of scope here and belongs to the
// roles package; identity only stamps the initial role at registration.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rolewarden/rolewarden/internal/domain"
	"github.com/rolewarden/rolewarden/internal/pkg/ctxlog"
	"golang.org/x/crypto/bcrypt"
)

// TokenPair holds an access token and its companion refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticator issues and validates session tokens.
type Authenticator interface {
	GenerateTokens(ctx context.Context, user *domain.User) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, token string) (string, domain.Role, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	Type() string
}

// UserCreatedHandler is notified after a new account is persisted. Failures
// are logged and do not affect registration.
type UserCreatedHandler interface {
	OnUserCreated(ctx context.Context, user *domain.User) error
}

// Service implements identity business logic.
type Service struct {
	repo          Repository
	authenticator Authenticator
	onUserCreated UserCreatedHandler
}

// NewService creates an identity service. onUserCreated may be nil.
func NewService(repo Repository, authenticator Authenticator, onUserCreated UserCreatedHandler) *Service {
	return &Service{
		repo:          repo,
		authenticator: authenticator,
		onUserCreated: onUserCreated,
	}
}

// RegisterInput holds the parameters of a registration.
type RegisterInput struct {
	Email    string
	Password string
}

// Register creates a new account. New accounts always start with the
// AUTHENTICATED role; elevation goes through the role authority.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if _, err := s.repo.GetUserByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:    input.Email,
		Password: string(hash),
		Role:     domain.RoleAuthenticated,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.onUserCreated != nil {
		if err := s.onUserCreated.OnUserCreated(ctx, user); err != nil {
			ctxlog.FromContext(ctx).Warn("user created handler failed",
				"user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// LoginInput holds the parameters of a login.
type LoginInput struct {
	Email    string
	Password string
}

// Login authenticates by email and password and issues a token pair. A
// missing account and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, input.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.authenticator.GenerateTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	return user, tokens, nil
}

// RefreshTokens rotates a refresh token into a new token pair.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.authenticator.RefreshTokens(ctx, refreshToken)
}

// Logout revokes the given refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.authenticator.RevokeRefreshToken(ctx, refreshToken)
}

// LogoutAll revokes every refresh token of the given user. Access tokens
// already issued keep working until they expire.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.DeleteUserRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// PurgeExpiredTokens removes refresh tokens past their expiry and returns
// how many were removed. Rotation deletes tokens that get presented; this
// sweeps the ones that never come back.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredRefreshTokens(ctx)
}

// GetUserByID returns the account with the given id.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ValidateToken verifies an access token and resolves the holder's current
// role from the store. The role claim inside the token is advisory only:
// role changes take effect on the next request, not the next login.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, domain.Role, error) {
	userID, _, err := s.authenticator.ValidateAccessToken(ctx, token)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return "", "", ErrInvalidToken
	}
	if err != nil {
		return "", "", fmt.Errorf("load user: %w", err)
	}

	return user.ID, user.Role, nil
}

// EnsureAdmin provisions an administrator account on startup when the store
// has none. It is a no-op when any administrator already exists or when the
// bootstrap credentials are not configured.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	admins, err := s.repo.CountUsersWithRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count administrators: %w", err)
	}
	if admins > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:    email,
		Password: string(hash),
		Role:     domain.RoleAdmin,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	ctxlog.FromContext(ctx).Info("bootstrap administrator created",
		"user_id", user.ID, "email", email)

	return nil
}
