package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hkaraoglu/dealer-auth/internal/auth"
	"github.com/hkaraoglu/dealer-auth/internal/config"
	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/services"
	pkgauth "github.com/hkaraoglu/dealer-auth/pkg/auth"
	pkghttp "github.com/hkaraoglu/dealer-auth/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, input services.RegisterInput) (*models.User, error)
	CreateByAdmin(ctx context.Context, input services.AdminCreateInput, actorID string) (*models.User, error)
	Login(ctx context.Context, key models.LoginKey, password string) (*models.TokenPair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error)
	Logout(ctx context.Context, accessToken string) error
	GetByID(ctx context.Context, targetID string, actor models.IdentityContext) (*models.User, error)
	UpdateSelf(ctx context.Context, userID string, input services.SelfUpdateInput) (*models.User, error)
	UpdateByAdmin(ctx context.Context, targetID string, input services.AdminUpdateInput, actorID string) (*models.User, error)
	DeleteByAdmin(ctx context.Context, targetID, actorID string) error
	ListUsers(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error)
}

// AuthHandler handles registration, login, token refresh, logout and the
// caller's own profile.
type AuthHandler struct {
	service       AuthServiceInterface
	cookieCfg     config.CookieConfig
	accessMaxAge  int
	refreshMaxAge int
}

// NewAuthHandler creates a new AuthHandler. Max ages are in seconds and
// bound the auth cookie lifetimes to the token lifetimes.
func NewAuthHandler(service AuthServiceInterface, cookieCfg config.CookieConfig, accessMaxAge, refreshMaxAge int) *AuthHandler {
	return &AuthHandler{
		service:       service,
		cookieCfg:     cookieCfg,
		accessMaxAge:  accessMaxAge,
		refreshMaxAge: refreshMaxAge,
	}
}

// Request DTOs

// RegisterRequest represents the request body for dealer self-registration
type RegisterRequest struct {
	BusinessName string  `json:"businessName" validate:"required,min=2,max=255"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required"`
	Province     string  `json:"province" validate:"required,min=2,max=100"`
	ContactName  *string `json:"contactName" validate:"omitempty,min=2,max=255"`
	Phone        *string `json:"phone" validate:"omitempty,phone"`
}

// LoginRequest represents the request body for login. Exactly one of email,
// phone or identifier picks the account; identifier is disambiguated by the
// presence of an @.
type LoginRequest struct {
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	Identifier string `json:"identifier" validate:"omitempty,min=3,max=255"`
	Password   string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdateMeRequest represents the request body for self profile updates.
// Email is immutable through this path. ContactName and Phone use Optional
// so an explicit null clears the field while an absent key leaves it alone.
type UpdateMeRequest struct {
	BusinessName *string                 `json:"businessName" validate:"omitempty,min=2,max=255"`
	Province     *string                 `json:"province" validate:"omitempty,min=2,max=100"`
	ContactName  models.Optional[string] `json:"contactName" validate:"omitempty,min=2,max=255"`
	Phone        models.Optional[string] `json:"phone" validate:"omitempty,phone"`
}

// Response DTOs

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID           string  `json:"id"`
	Role         string  `json:"role"`
	BusinessName string  `json:"businessName"`
	Email        string  `json:"email"`
	Province     string  `json:"province"`
	ContactName  *string `json:"contactName,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	IsActive     bool    `json:"isActive"`
	LastLoginAt  *string `json:"lastLoginAt,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// AuthResponse represents the response from login and refresh
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	User         *UserResponse `json:"user"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// userModelToResponse converts a user model to a response DTO
func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:           user.ID,
		Role:         user.Role.String(),
		BusinessName: user.BusinessName,
		Email:        user.Email,
		Province:     user.Province,
		ContactName:  user.ContactName,
		Phone:        user.Phone,
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt.Format(timeFormat),
		UpdatedAt:    user.UpdatedAt.Format(timeFormat),
	}
	if user.LastLoginAt != nil {
		formatted := user.LastLoginAt.Format(timeFormat)
		resp.LastLoginAt = &formatted
	}
	return resp
}

// Register handles dealer self-registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		BusinessName: req.BusinessName,
		Email:        req.Email,
		Password:     req.Password,
		Province:     req.Province,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userModelToResponse(user))
}

// Login handles user login and sets the auth cookies
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	key, ok := resolveLoginKey(req)
	if !ok {
		pkghttp.WriteBadRequest(w, "One of email, phone or identifier is required")
		return
	}

	pair, user, err := h.service.Login(r.Context(), key, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	auth.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, h.accessMaxAge, h.refreshMaxAge, h.cookieCfg)
	writeJSON(w, http.StatusOK, &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		User:         userModelToResponse(user),
	})
}

// Refresh exchanges a refresh token for a new pair and rotates the cookies.
// The token is taken from the body, then the cookie, then the
// X-Refresh-Token header.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if r.Body != nil {
		// A missing or empty body is fine; the cookie or header may carry the token.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		if fromCookie, err := auth.GetRefreshTokenCookie(r); err == nil {
			refreshToken = fromCookie
		}
	}
	if refreshToken == "" {
		refreshToken = strings.TrimSpace(r.Header.Get("X-Refresh-Token"))
	}
	if refreshToken == "" {
		pkghttp.WriteUnauthorized(w, "Refresh token required")
		return
	}

	pair, user, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	auth.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, h.accessMaxAge, h.refreshMaxAge, h.cookieCfg)
	writeJSON(w, http.StatusOK, &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		User:         userModelToResponse(user),
	})
}

// Logout blacklists the current access token and clears the auth cookies
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken := auth.TokenFromContext(r)
	if accessToken == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), accessToken); err != nil {
		writeServiceError(w, err)
		return
	}

	auth.ClearAuthCookies(w, h.cookieCfg)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me returns the authenticated user's own record
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.GetByID(r.Context(), identity.UserID, identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userModelToResponse(user))
}

// UpdateMe applies a profile update to the authenticated user's own record
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.UpdateSelf(r.Context(), identity.UserID, services.SelfUpdateInput{
		BusinessName: req.BusinessName,
		Province:     req.Province,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userModelToResponse(user))
}

// resolveLoginKey picks the lookup key once at the boundary. An explicit
// email or phone field wins; a bare identifier is treated as an email when
// it contains an @, otherwise as a phone number.
func resolveLoginKey(req LoginRequest) (models.LoginKey, bool) {
	switch {
	case strings.TrimSpace(req.Email) != "":
		return models.LoginKey{Kind: models.LoginByEmail, Value: req.Email}, true
	case strings.TrimSpace(req.Phone) != "":
		return models.LoginKey{Kind: models.LoginByPhone, Value: req.Phone}, true
	case strings.TrimSpace(req.Identifier) != "":
		if strings.Contains(req.Identifier, "@") {
			return models.LoginKey{Kind: models.LoginByEmail, Value: req.Identifier}, true
		}
		return models.LoginKey{Kind: models.LoginByPhone, Value: req.Identifier}, true
	default:
		return models.LoginKey{}, false
	}
}

// writeServiceError maps service-layer errors to HTTP responses. Messages
// stay generic so responses never reveal which account or field failed.
func writeServiceError(w http.ResponseWriter, err error) {
	var passwordErr *pkgauth.PasswordValidationError
	switch {
	case errors.As(err, &passwordErr):
		pkghttp.WriteBadRequest(w, passwordErr.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, conflictMessage(err))
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// conflictMessage names only the conflicting field, never the existing value.
func conflictMessage(err error) string {
	if strings.Contains(err.Error(), "phone") {
		return "Phone already registered"
	}
	return "Email already registered"
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
