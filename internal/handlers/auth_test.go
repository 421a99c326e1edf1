package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkaraoglu/dealer-auth/internal/auth"
	"github.com/hkaraoglu/dealer-auth/internal/config"
	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/revocation"
	"github.com/hkaraoglu/dealer-auth/internal/services"
	pkgauth "github.com/hkaraoglu/dealer-auth/pkg/auth"
)

const (
	testAccessMaxAge  = 900
	testRefreshMaxAge = 604800
)

func testCookieConfig() config.CookieConfig {
	return config.CookieConfig{SameSite: "lax"}
}

func newTestAuthHandler(service AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(service, testCookieConfig(), testAccessMaxAge, testRefreshMaxAge)
}

func jsonBody(t *testing.T, payload any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

// newProtectedRouter mounts the authenticated auth routes behind the real
// guard so the handlers see identity and token context the way they do in
// production.
func newProtectedRouter(h *AuthHandler, tm *auth.TokenManager) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := revocation.NewMemoryRegistry(logger)
	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(tm, registry, logger, auth.GuardConfig{FailClosed: true}))
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)
		r.Patch("/auth/me", h.UpdateMe)
	})
	return router
}

func handlerTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-32-characters-long-for-testing", 15*time.Minute, 7*24*time.Hour)
}

func TestRegister_Success(t *testing.T) {
	var got services.RegisterInput
	service := &MockAuthService{
		RegisterFunc: func(_ context.Context, input services.RegisterInput) (*models.User, error) {
			got = input
			return sampleUser(), nil
		},
	}
	h := newTestAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]any{
		"businessName": "Test Motors",
		"email":        "dealer@example.com",
		"password":     "Correct-Horse-9-Battery",
		"province":     "Ankara",
		"phone":        "+90 555 123 4567",
	}))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Test Motors", got.BusinessName)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "+90 555 123 4567", *got.Phone)

	resp := decodeJSON[UserResponse](t, rec)
	assert.Equal(t, "dealer@example.com", resp.Email)
	assert.Equal(t, "DEALER", resp.Role)
	assert.Equal(t, "2026-03-14T10:30:00Z", resp.CreatedAt)
}

func TestRegister_InvalidBody(t *testing.T) {
	h := newTestAuthHandler(&MockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "missing email",
			body: map[string]any{"businessName": "Test Motors", "password": "x", "province": "Ankara"},
		},
		{
			name: "malformed email",
			body: map[string]any{"businessName": "Test Motors", "email": "not-an-email", "password": "x", "province": "Ankara"},
		},
		{
			name: "business name too short",
			body: map[string]any{"businessName": "T", "email": "d@example.com", "password": "x", "province": "Ankara"},
		},
		{
			name: "phone fails format check",
			body: map[string]any{"businessName": "Test Motors", "email": "d@example.com", "password": "x", "province": "Ankara", "phone": "abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAuthHandler(&MockAuthService{
				RegisterFunc: func(context.Context, services.RegisterInput) (*models.User, error) {
					t.Fatal("service must not be called on validation failure")
					return nil, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, tt.body))
			rec := httptest.NewRecorder()
			h.Register(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegister_ConflictMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "email taken",
			err:     fmt.Errorf("email already registered: %w", models.ErrConflict),
			message: "Email already registered",
		},
		{
			name:    "phone taken",
			err:     fmt.Errorf("phone already registered: %w", models.ErrConflict),
			message: "Phone already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAuthHandler(&MockAuthService{
				RegisterFunc: func(context.Context, services.RegisterInput) (*models.User, error) {
					return nil, tt.err
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]any{
				"businessName": "Test Motors",
				"email":        "dealer@example.com",
				"password":     "Correct-Horse-9-Battery",
				"province":     "Ankara",
			}))
			rec := httptest.NewRecorder()
			h.Register(rec, req)

			assert.Equal(t, http.StatusConflict, rec.Code)
			body := decodeJSON[errorBody](t, rec)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	h := newTestAuthHandler(&MockAuthService{
		RegisterFunc: func(context.Context, services.RegisterInput) (*models.User, error) {
			return nil, &pkgauth.PasswordValidationError{Errors: []string{"must be at least 12 characters"}}
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]any{
		"businessName": "Test Motors",
		"email":        "dealer@example.com",
		"password":     "short",
		"province":     "Ankara",
	}))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON[errorBody](t, rec)
	assert.Equal(t, "invalid password", body.Message, "requirement details never leave the server")
}

func TestLogin_SetsCookiesAndReturnsPair(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(context.Context, models.LoginKey, string) (*models.TokenPair, *models.User, error) {
			return samplePair(), sampleUser(), nil
		},
	}
	h := newTestAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]any{
		"email":    "dealer@example.com",
		"password": "Correct-Horse-9-Battery",
	}))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	access := findCookie(t, rec, "access_token")
	assert.Equal(t, "access.jwt.token", access.Value)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, testAccessMaxAge, access.MaxAge)

	refresh := findCookie(t, rec, "refresh_token")
	assert.Equal(t, "refresh.jwt.token", refresh.Value)
	assert.Equal(t, testRefreshMaxAge, refresh.MaxAge)

	resp := decodeJSON[AuthResponse](t, rec)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "access.jwt.token", resp.AccessToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "dealer@example.com", resp.User.Email)
}

func TestLogin_KeyResolution(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]any
		wantKind  models.LoginKeyKind
		wantValue string
	}{
		{
			name:      "explicit email field",
			body:      map[string]any{"email": "dealer@example.com", "password": "pw"},
			wantKind:  models.LoginByEmail,
			wantValue: "dealer@example.com",
		},
		{
			name:      "explicit phone field",
			body:      map[string]any{"phone": "+905551234567", "password": "pw"},
			wantKind:  models.LoginByPhone,
			wantValue: "+905551234567",
		},
		{
			name:      "identifier with at sign is an email",
			body:      map[string]any{"identifier": "dealer@example.com", "password": "pw"},
			wantKind:  models.LoginByEmail,
			wantValue: "dealer@example.com",
		},
		{
			name:      "identifier without at sign is a phone",
			body:      map[string]any{"identifier": "+905551234567", "password": "pw"},
			wantKind:  models.LoginByPhone,
			wantValue: "+905551234567",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotKey models.LoginKey
			h := newTestAuthHandler(&MockAuthService{
				LoginFunc: func(_ context.Context, key models.LoginKey, _ string) (*models.TokenPair, *models.User, error) {
					gotKey = key
					return samplePair(), sampleUser(), nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, tt.body))
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantKind, gotKey.Kind)
			assert.Equal(t, tt.wantValue, gotKey.Value)
		})
	}
}

func TestLogin_MissingIdentifier(t *testing.T) {
	h := newTestAuthHandler(&MockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]any{
		"password": "Correct-Horse-9-Battery",
	}))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newTestAuthHandler(&MockAuthService{
		LoginFunc: func(context.Context, models.LoginKey, string) (*models.TokenPair, *models.User, error) {
			return nil, nil, models.ErrUnauthorized
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]any{
		"email":    "dealer@example.com",
		"password": "wrong",
	}))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeJSON[errorBody](t, rec)
	assert.Equal(t, "Authentication failed", body.Message)
	assert.Empty(t, rec.Result().Cookies(), "no cookies on failed login")
}

func TestRefresh_TokenSourceOrder(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		cookie    string
		header    string
		wantToken string
	}{
		{
			name:      "body only",
			body:      map[string]any{"refreshToken": "from-body"},
			wantToken: "from-body",
		},
		{
			name:      "cookie only",
			cookie:    "from-cookie",
			wantToken: "from-cookie",
		},
		{
			name:      "header only",
			header:    "from-header",
			wantToken: "from-header",
		},
		{
			name:      "body wins over cookie and header",
			body:      map[string]any{"refreshToken": "from-body"},
			cookie:    "from-cookie",
			header:    "from-header",
			wantToken: "from-body",
		},
		{
			name:      "cookie wins over header",
			cookie:    "from-cookie",
			header:    "from-header",
			wantToken: "from-cookie",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotToken string
			h := newTestAuthHandler(&MockAuthService{
				RefreshFunc: func(_ context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
					gotToken = refreshToken
					return samplePair(), sampleUser(), nil
				},
			})

			var body io.Reader = http.NoBody
			if tt.body != nil {
				body = jsonBody(t, tt.body)
			}
			req := httptest.NewRequest(http.MethodPost, "/auth/refresh", body)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "refresh_token", Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("X-Refresh-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			h.Refresh(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantToken, gotToken)
		})
	}
}

func TestRefresh_NoTokenAnywhere(t *testing.T) {
	h := newTestAuthHandler(&MockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", http.NoBody)
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeJSON[errorBody](t, rec)
	assert.Equal(t, "Refresh token required", body.Message)
}

func TestRefresh_RotatesCookies(t *testing.T) {
	pair := &models.TokenPair{
		AccessToken:  "rotated.access",
		RefreshToken: "rotated.refresh",
		TokenType:    "Bearer",
	}
	h := newTestAuthHandler(&MockAuthService{
		RefreshFunc: func(context.Context, string) (*models.TokenPair, *models.User, error) {
			return pair, sampleUser(), nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "old-refresh"})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rotated.access", findCookie(t, rec, "access_token").Value)
	assert.Equal(t, "rotated.refresh", findCookie(t, rec, "refresh_token").Value)
}

func TestRefresh_StaleToken(t *testing.T) {
	h := newTestAuthHandler(&MockAuthService{
		RefreshFunc: func(context.Context, string) (*models.TokenPair, *models.User, error) {
			return nil, nil, models.ErrUnauthorized
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", jsonBody(t, map[string]any{
		"refreshToken": "stale",
	}))
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ClearsCookies(t *testing.T) {
	tm := handlerTokenManager()
	accessToken, err := tm.GenerateAccessToken("user_123", models.RoleDealer)
	require.NoError(t, err)

	var gotToken string
	h := newTestAuthHandler(&MockAuthService{
		LogoutFunc: func(_ context.Context, token string) error {
			gotToken = token
			return nil
		},
	})
	router := newProtectedRouter(h, tm)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, accessToken, gotToken, "the raw bearer token reaches the service")

	access := findCookie(t, rec, "access_token")
	assert.Empty(t, access.Value)
	assert.Equal(t, -1, access.MaxAge)
	refresh := findCookie(t, rec, "refresh_token")
	assert.Equal(t, -1, refresh.MaxAge)

	body := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "Logged out", body["message"])
}

func TestLogout_StoreUnavailable(t *testing.T) {
	tm := handlerTokenManager()
	accessToken, err := tm.GenerateAccessToken("user_123", models.RoleDealer)
	require.NoError(t, err)

	h := newTestAuthHandler(&MockAuthService{
		LogoutFunc: func(context.Context, string) error {
			return fmt.Errorf("blacklisting token: %w", models.ErrStoreUnavailable)
		},
	})
	router := newProtectedRouter(h, tm)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMe_ReturnsOwnRecord(t *testing.T) {
	tm := handlerTokenManager()
	accessToken, err := tm.GenerateAccessToken("user_123", models.RoleDealer)
	require.NoError(t, err)

	h := newTestAuthHandler(&MockAuthService{
		GetByIDFunc: func(_ context.Context, targetID string, actor models.IdentityContext) (*models.User, error) {
			assert.Equal(t, "user_123", targetID)
			assert.Equal(t, "user_123", actor.UserID)
			assert.Equal(t, models.RoleDealer, actor.Role)
			return sampleUser(), nil
		},
	})
	router := newProtectedRouter(h, tm)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[UserResponse](t, rec)
	assert.Equal(t, "dealer@example.com", resp.Email)
}

func TestUpdateMe(t *testing.T) {
	tm := handlerTokenManager()
	accessToken, err := tm.GenerateAccessToken("user_123", models.RoleDealer)
	require.NoError(t, err)

	var got services.SelfUpdateInput
	h := newTestAuthHandler(&MockAuthService{
		UpdateSelfFunc: func(_ context.Context, userID string, input services.SelfUpdateInput) (*models.User, error) {
			assert.Equal(t, "user_123", userID)
			got = input
			return sampleUser(), nil
		},
	})
	router := newProtectedRouter(h, tm)

	req := httptest.NewRequest(http.MethodPatch, "/auth/me", jsonBody(t, map[string]any{
		"businessName": "Updated Motors",
		"phone":        "+90 212 555 0000",
	}))
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.BusinessName)
	assert.Equal(t, "Updated Motors", *got.BusinessName)
	require.True(t, got.Phone.Set)
	require.NotNil(t, got.Phone.Value)
	assert.Equal(t, "+90 212 555 0000", *got.Phone.Value)
	assert.Nil(t, got.Province, "untouched fields stay nil")
	assert.False(t, got.ContactName.Set, "absent fields arrive unset")
}

func TestUpdateMe_NullClearsPhone(t *testing.T) {
	tm := handlerTokenManager()
	accessToken, err := tm.GenerateAccessToken("user_123", models.RoleDealer)
	require.NoError(t, err)

	var got services.SelfUpdateInput
	h := newTestAuthHandler(&MockAuthService{
		UpdateSelfFunc: func(_ context.Context, _ string, input services.SelfUpdateInput) (*models.User, error) {
			got = input
			return sampleUser(), nil
		},
	})
	router := newProtectedRouter(h, tm)

	req := httptest.NewRequest(http.MethodPatch, "/auth/me", jsonBody(t, map[string]any{
		"phone": nil,
	}))
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// An explicit null must arrive as a set-but-nil value; an omitted key
	// must arrive unset. The two are different operations.
	require.True(t, got.Phone.Set)
	assert.Nil(t, got.Phone.Value)
	assert.False(t, got.ContactName.Set)
}

func TestUpdateMe_PhoneConflict(t *testing.T) {
	tm := handlerTokenManager()
	accessToken, err := tm.GenerateAccessToken("user_123", models.RoleDealer)
	require.NoError(t, err)

	h := newTestAuthHandler(&MockAuthService{
		UpdateSelfFunc: func(context.Context, string, services.SelfUpdateInput) (*models.User, error) {
			return nil, fmt.Errorf("phone already registered: %w", models.ErrConflict)
		},
	})
	router := newProtectedRouter(h, tm)

	req := httptest.NewRequest(http.MethodPatch, "/auth/me", jsonBody(t, map[string]any{
		"phone": "+90 212 555 0000",
	}))
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeJSON[errorBody](t, rec)
	assert.Equal(t, "Phone already registered", body.Message)
}
