package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/hkaraoglu/dealer-auth/internal/auth"
	"github.com/hkaraoglu/dealer-auth/internal/handlers"
	"github.com/hkaraoglu/dealer-auth/internal/middleware"
	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/revocation"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
	registry revocation.Registry,
	logger *slog.Logger,
	guardCfg auth.GuardConfig,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/refresh", authHandler.Refresh)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(tokenManager, registry, logger, guardCfg))

		// Any authenticated user
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)
		r.Patch("/auth/me", authHandler.UpdateMe)
		r.Get("/auth/users/{id}", userHandler.GetUser) // self or admin, enforced in the service

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/auth/users", userHandler.CreateUser)
			r.Get("/auth/users", userHandler.ListUsers)
			r.Patch("/auth/users/{id}", userHandler.UpdateUser)
			r.Delete("/auth/users/{id}", userHandler.DeleteUser)
		})
	})
}
