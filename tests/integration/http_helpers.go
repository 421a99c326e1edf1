package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hkaraoglu/dealer-auth/internal/auth"
	"github.com/hkaraoglu/dealer-auth/internal/config"
	"github.com/hkaraoglu/dealer-auth/internal/database"
	"github.com/hkaraoglu/dealer-auth/internal/handlers"
	middlewareCustom "github.com/hkaraoglu/dealer-auth/internal/middleware"
	"github.com/hkaraoglu/dealer-auth/internal/repositories"
	"github.com/hkaraoglu/dealer-auth/internal/revocation"
	"github.com/hkaraoglu/dealer-auth/internal/routes"
	"github.com/hkaraoglu/dealer-auth/internal/services"
	pkghttp "github.com/hkaraoglu/dealer-auth/pkg/http"
	pkglogger "github.com/hkaraoglu/dealer-auth/pkg/logger"
)

// TestServer wraps httptest.Server with a real database and an in-process
// revocation registry.
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Registry *revocation.MemoryRegistry
	UserRepo *repositories.UserRepository
	Config   *config.Config
}

// NewTestServer wires the full HTTP stack against the given database
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
		},
		Revocation: config.RevocationConfig{
			Store:      "memory",
			FailClosed: true,
		},
		Cookie: config.CookieConfig{
			Secure:   false,
			SameSite: "lax",
		},
	}

	userRepo := repositories.NewUserRepository(db)
	registry := revocation.NewMemoryRegistry(logger)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger, "test")
	authService := services.NewAuthService(userRepo, registry, tokenManager, logger, auditLogger)

	accessMaxAge := int(cfg.Auth.AccessTokenExpiry.Seconds())
	refreshMaxAge := int(cfg.Auth.RefreshTokenExpiry.Seconds())
	authHandler := handlers.NewAuthHandler(authService, cfg.Cookie, accessMaxAge, refreshMaxAge)
	userHandler := handlers.NewUserHandler(authService)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger, &pkghttp.IPConfig{}))
	router.Use(chiMiddleware.Recoverer)

	guardCfg := auth.GuardConfig{FailClosed: cfg.Revocation.FailClosed}
	routes.RegisterRoutes(router, authHandler, userHandler, tokenManager, registry, logger, guardCfg)

	return &TestServer{
		Server:   httptest.NewServer(router),
		DB:       db,
		Registry: registry,
		UserRepo: userRepo,
		Config:   cfg,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// DoJSON sends a JSON request with an optional bearer token and decodes the
// response body into out when it is non-nil.
func (ts *TestServer) DoJSON(method, path, bearer string, body any, out any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decoding %s %s response (%d): %w", method, path, resp.StatusCode, err)
		}
	}

	return resp, nil
}
