package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/revocation"
	pkghttp "github.com/hkaraoglu/dealer-auth/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// identityContextKey is the key for the resolved identity in context
	identityContextKey contextKey = "identity"
	// tokenContextKey is the key for the raw access token in context
	tokenContextKey contextKey = "access_token"
)

// GuardConfig controls how the guard reacts when the revocation store is
// unreachable: deny (fail closed, security favored) or proceed (fail open,
// availability favored). Every store failure is logged regardless of the
// mode; invalid and expired tokens always fail closed.
type GuardConfig struct {
	FailClosed bool
}

// Authenticate resolves the request's bearer token into an identity context:
// decode, reject refresh tokens, check the token blacklist, check the
// per-user revocation boundary by issue time. All check failures are a
// uniform 401 with no detail about which check tripped.
func Authenticate(tm *TokenManager, registry revocation.Registry, logger *slog.Logger, cfg GuardConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractAccessToken(r)
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Authentication failed")
				return
			}

			// Refresh tokens are only accepted by the refresh endpoint
			if claims.Type != models.TokenTypeAccess {
				pkghttp.WriteUnauthorized(w, "Authentication failed")
				return
			}

			blacklisted, err := registry.IsTokenBlacklisted(r.Context(), tokenString)
			if err != nil {
				logger.Error("revocation store check failed",
					slog.String("check", "token_blacklist"),
					slog.String("user_id", claims.UserID),
					slog.Bool("fail_closed", cfg.FailClosed),
					slog.Any("error", err))
				if cfg.FailClosed {
					pkghttp.WriteServiceUnavailable(w, "Unable to verify token status")
					return
				}
			} else if blacklisted {
				pkghttp.WriteUnauthorized(w, "Authentication failed")
				return
			}

			if claims.IssuedAt != nil {
				revoked, err := registry.IsUserRevoked(r.Context(), claims.UserID, claims.IssuedAt.Time)
				if err != nil {
					logger.Error("revocation store check failed",
						slog.String("check", "user_revocation"),
						slog.String("user_id", claims.UserID),
						slog.Bool("fail_closed", cfg.FailClosed),
						slog.Any("error", err))
					if cfg.FailClosed {
						pkghttp.WriteServiceUnavailable(w, "Unable to verify token status")
						return
					}
				} else if revoked {
					pkghttp.WriteUnauthorized(w, "Authentication failed")
					return
				}
			}

			identity := models.IdentityContext{UserID: claims.UserID, Role: claims.Role}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			ctx = context.WithValue(ctx, tokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces role-based access control. Must run after
// Authenticate. Roles are compared as the closed enum; no database lookup.
func RequireRole(role models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			if identity.Role != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext extracts the resolved identity from the request context
func IdentityFromContext(r *http.Request) (models.IdentityContext, bool) {
	identity, ok := r.Context().Value(identityContextKey).(models.IdentityContext)
	return identity, ok
}

// TokenFromContext extracts the raw access token from the request context
func TokenFromContext(r *http.Request) string {
	token, _ := r.Context().Value(tokenContextKey).(string)
	return token
}

// extractAccessToken pulls the access token from the Authorization header,
// falling back to the access token cookie.
func extractAccessToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	if token, err := GetAccessTokenCookie(r); err == nil {
		return token
	}
	return ""
}
