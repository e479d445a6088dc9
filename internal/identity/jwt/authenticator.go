// Package jwt implements token issuance backed by HS256 access tokens and
// store-persisted rotating refresh tokens.
package jwt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rolewarden/rolewarden/internal/domain"
	"github.com/rolewarden/rolewarden/internal/identity"
)

// Config holds token issuance settings.
type Config struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Claims are the access token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator implements identity.Authenticator with JWT access tokens and
// opaque refresh tokens persisted through the identity repository.
type Authenticator struct {
	repo identity.Repository
	cfg  Config
}

// NewAuthenticator creates a JWT authenticator.
func NewAuthenticator(cfg Config, repo identity.Repository) *Authenticator {
	return &Authenticator{repo: repo, cfg: cfg}
}

// Type returns the authenticator kind.
func (a *Authenticator) Type() string { return "jwt" }

// GenerateTokens issues an access/refresh token pair for user. The refresh
// token is stored so it can be rotated and revoked.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	accessToken, err := a.signAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	if err := a.repo.SaveRefreshToken(ctx, &domain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: now.Add(a.cfg.RefreshTokenDuration),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &identity.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidateAccessToken parses and verifies an access token, returning the
// subject user id and the role claim embedded at issuance time.
func (a *Authenticator) ValidateAccessToken(_ context.Context, token string) (string, domain.Role, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.SecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return "", "", identity.ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", "", identity.ErrInvalidToken
	}

	return claims.Subject, domain.Role(claims.Role), nil
}

// RefreshTokens rotates refreshToken into a new pair. The presented token is
// consumed whether or not issuance succeeds, so a leaked token cannot be
// replayed.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	stored, err := a.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	if err := a.repo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("delete refresh token: %w", err)
	}

	if time.Now().UTC().After(stored.ExpiresAt) {
		return nil, identity.ErrInvalidToken
	}

	user, err := a.repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken invalidates a refresh token. Revoking an unknown token
// is not an error.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.repo.DeleteRefreshToken(ctx, refreshToken)
}

func (a *Authenticator) signAccessToken(user *domain.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.AccessTokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.SecretKey))
}

func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
