package api

import (
	"net/http"
	"time"

	"csi_locks/internal/api/handler"
	"csi_locks/internal/api/middleware"
	"csi_locks/internal/app/realtime"
	"csi_locks/internal/app/service"
	"csi_locks/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	RequireSessionToken bool
	RateLimitRequests   int // creation requests per IP per window; <= 0 disables
	RateLimitWindow     time.Duration
	TrustProxyHeaders   bool // take the client IP from X-Forwarded-For / X-Real-IP
	AccessLog           bool
}

func NewRouter(
	cfg RouterConfig,
	bundleService *service.BundleService,
	sessionService *service.SessionService,
	authService *service.AuthService,
	adminService *service.AdminService,
	guard *security.TokenGuard,
	adminAuth *security.AdminAuth,
	hub *realtime.Hub,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	if cfg.AccessLog {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		// Player routes
		v1.Group(func(play chi.Router) {
			play.Use(chiMiddleware.Timeout(60 * time.Second))

			// Only creation is throttled. Polling, heartbeats and answers
			// from an open session are never rejected by the limiter.
			var limitCreate func(http.Handler) http.Handler
			if cfg.RateLimitRequests > 0 {
				limitCreate = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow).Handler
			}

			bundleHandler := handler.NewBundleHandler(bundleService, limitCreate)
			play.Route("/instances", bundleHandler.RegisterRoutes)

			sessionHandler := handler.NewSessionHandler(sessionService, guard, cfg.RequireSessionToken, limitCreate)
			play.Route("/sessions", sessionHandler.RegisterRoutes)
		})

		// Admin routes (shared secret or admin token)
		authHandler := handler.NewAuthHandler(authService)
		adminHandler := handler.NewAdminHandler(adminService, authService, adminAuth.TokenAuth, hub)
		v1.Route("/admin", func(ar chi.Router) {
			authHandler.RegisterRoutes(ar)
			adminHandler.RegisterRoutes(ar)
		})
	})

	return r
}
