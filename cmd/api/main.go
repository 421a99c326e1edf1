package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hkaraoglu/dealer-auth/internal/auth"
	"github.com/hkaraoglu/dealer-auth/internal/background"
	"github.com/hkaraoglu/dealer-auth/internal/config"
	"github.com/hkaraoglu/dealer-auth/internal/database"
	"github.com/hkaraoglu/dealer-auth/internal/handlers"
	middlewareCustom "github.com/hkaraoglu/dealer-auth/internal/middleware"
	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/repositories"
	"github.com/hkaraoglu/dealer-auth/internal/revocation"
	"github.com/hkaraoglu/dealer-auth/internal/routes"
	"github.com/hkaraoglu/dealer-auth/internal/services"
	pkgauth "github.com/hkaraoglu/dealer-auth/pkg/auth"
	pkghttp "github.com/hkaraoglu/dealer-auth/pkg/http"
	pkglogger "github.com/hkaraoglu/dealer-auth/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("revocation_store", cfg.Revocation.Store),
		slog.Bool("revocation_fail_closed", cfg.Revocation.FailClosed))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize the revocation registry
	var registry revocation.Registry
	var redisRegistry *revocation.RedisRegistry
	var purgeManager *background.PurgeManager

	switch cfg.Revocation.Store {
	case "redis":
		redisRegistry, err = revocation.NewRedisRegistry(
			cfg.Revocation.RedisAddr,
			cfg.Revocation.RedisPassword,
			cfg.Revocation.RedisDB,
			cfg.Revocation.CallTimeout,
			cfg.Auth.RefreshTokenExpiry,
			logger,
		)
		if err != nil {
			logger.Error("failed to connect to revocation store", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisRegistry.Close()
		registry = redisRegistry
	case "memory":
		memRegistry := revocation.NewMemoryRegistry(logger)
		purgeManager = background.NewPurgeManager(
			memRegistry,
			logger,
			cfg.Revocation.PurgeInterval,
			cfg.Auth.RefreshTokenExpiry,
		)
		registry = memRegistry
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)
	authService := services.NewAuthService(userRepo, registry, tokenManager, logger, auditLogger)

	// Initialize handlers
	accessMaxAge := int(cfg.Auth.AccessTokenExpiry.Seconds())
	refreshMaxAge := int(cfg.Auth.RefreshTokenExpiry.Seconds())
	authHandler := handlers.NewAuthHandler(authService, cfg.Cookie, accessMaxAge, refreshMaxAge)
	userHandler := handlers.NewUserHandler(authService)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)
	ipConfig := pkghttp.DefaultIPConfig()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	guardCfg := auth.GuardConfig{FailClosed: cfg.Revocation.FailClosed}
	routes.RegisterRoutes(router, authHandler, userHandler, tokenManager, registry, logger, guardCfg)

	// Health check covers the database and, when configured, redis
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus, redisStatus := "up", "up"
		healthy := true

		if err := db.HealthCheck(ctx); err != nil {
			dbStatus = "down"
			healthy = false
		}
		if redisRegistry != nil {
			if err := redisRegistry.HealthCheck(ctx); err != nil {
				redisStatus = "down"
				healthy = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		status := "healthy"
		code := http.StatusOK
		if !healthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"database":%q,"revocation_store":%q}`, status, dbStatus, redisStatus)
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the memory-store purge task when in use
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()
	if purgeManager != nil {
		go purgeManager.Start(purgeCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	purgeCancel()
	if purgeManager != nil {
		purgeManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists (soft-deleted rows included; a deleted
	// admin's email must not be silently recreated)
	_, err := userRepo.GetByEmail(ctx, adminEmail, true)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Role:         models.RoleAdmin,
		BusinessName: "Platform Admin",
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Province:     "N/A",
		IsActive:     true,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
