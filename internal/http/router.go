package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatherly/gatherly-auth/internal/config"
	"github.com/gatherly/gatherly-auth/internal/http/features/magiclink"
	"github.com/gatherly/gatherly-auth/internal/http/features/me"
	"github.com/gatherly/gatherly-auth/internal/http/features/session"
	"github.com/gatherly/gatherly-auth/internal/http/middleware"
	"github.com/gatherly/gatherly-auth/internal/httputil"
	"github.com/gatherly/gatherly-auth/pkg/auth"
	"github.com/gatherly/gatherly-auth/pkg/repository"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger           *slog.Logger
	MagicLinkService *auth.MagicLinkService
	SessionService   *auth.SessionService
	UsersRepo        *repository.UsersRepository
	MembershipsRepo  *repository.MembershipsRepository
	RateLimitConfig  config.RateLimitConfig
	SecurityHeaders  config.SecurityHeadersConfig
	MaxBodySize      int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	// Magic-link sign-in
	magicLinkHandler := magiclink.NewHandler(cfg.Logger, cfg.MagicLinkService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["request"])
		r.Post("/auth/magic-link/request", magicLinkHandler.Request)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["verify"])
		r.Post("/auth/magic-link/verify", magicLinkHandler.Verify)
	})

	// Session mechanics
	sessionHandler := session.NewHandler(cfg.SessionService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["refresh"])
		r.Post("/v1/auth/refresh", sessionHandler.Refresh)
	})
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(middleware.Auth(cfg.SessionService)).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)

	// Profile
	meHandler := me.NewHandler(cfg.Logger, cfg.UsersRepo, cfg.MembershipsRepo)
	r.With(middleware.Auth(cfg.SessionService)).Get("/v1/me", meHandler.GetMe)

	return r
}
