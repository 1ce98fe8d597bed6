package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KYANTECH254/social-server/internal/health"
	"github.com/KYANTECH254/social-server/internal/middleware"
	"github.com/KYANTECH254/social-server/internal/service"
)

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics())

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(authService, logger)

	// Token validator that bridges to the auth service.
	tokenValidator := func(ctx context.Context, token string) (*middleware.Claims, error) {
		claims, err := authService.ValidateAccess(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
		}, nil
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public endpoints
		r.Post("/google", authHandler.GoogleAuth)
		r.Post("/account", authHandler.AccountSetup)
		r.Post("/updateUser", authHandler.AccountSetup) // legacy alias
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Get("/me", authHandler.Me)
		})
	})

	r.Route("/api/check", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/username", authHandler.CheckUsername)
	})

	return r
}
