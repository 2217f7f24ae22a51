package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/auth"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/config"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/http/handlers"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/middleware"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured. Every route
// passes rate limiting first; protected routes then pass the role gate and,
// where a target resource is named, the ownership gate.
func NewRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	ownerHandler *handlers.OwnerHandler,
	jwtService *auth.JWTService,
	ownerRepo repo.OwnerRepo,
	limiter *middleware.RateLimiter,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	limitAuth := middleware.RateLimitMiddleware(limiter, middleware.ClassAuth, cfg.RateLimitAuthPerMin, jwtService)
	limitMutation := middleware.RateLimitMiddleware(limiter, middleware.ClassMutation, cfg.RateLimitMutationPerMin, jwtService)
	limitRead := middleware.RateLimitMiddleware(limiter, middleware.ClassRead, cfg.RateLimitReadPerMin, jwtService)

	requireAuth := middleware.RequireAuth(jwtService)
	ownSessions := middleware.RequireOwnership(ownerRepo, "userId", "")
	ownProfile := middleware.RequireOwnership(ownerRepo, "", "nic")

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Use(limitAuth)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
	})

	r.With(limitRead, requireAuth, ownSessions).
		Get("/users/{userId}/sessions", sessionHandler.HandleList)
	r.With(limitMutation, requireAuth, ownSessions).
		Delete("/users/{userId}/sessions/{tokenId}", sessionHandler.HandleRevoke)
	r.With(limitRead, requireAuth, ownProfile).
		Get("/owners/{nic}", ownerHandler.HandleGet)

	return r
}
