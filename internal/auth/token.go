package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hkaraoglu/dealer-auth/internal/models"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             secret,
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTokenTTL() time.Duration {
	return tm.accessTokenExpiry
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (tm *TokenManager) RefreshTokenTTL() time.Duration {
	return tm.refreshTokenExpiry
}

// GenerateAccessToken creates a short-lived access token
func (tm *TokenManager) GenerateAccessToken(userID string, role models.Role) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Type:   models.TokenTypeAccess,
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// GenerateRefreshToken creates a long-lived refresh token carrying the jti
// that identifies its refresh chain.
func (tm *TokenManager) GenerateRefreshToken(userID string, role models.Role, jti string) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Type:   models.TokenTypeRefresh,
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.refreshTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims. Signature
// mismatch, malformed payload, and expiry all collapse into
// models.ErrUnauthorized so callers cannot be used as a forgery oracle.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(tm.secret), nil
	})

	if err != nil || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.TokenTypeAccess && claims.Type != models.TokenTypeRefresh {
		return nil, models.ErrUnauthorized
	}

	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
