package models

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims is the signed claim set carried by both token types. The
// registered ID claim holds the refresh jti; IssuedAt drives per-user mass
// revocation checks.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair is the result of login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
