package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/approvers/sponsor-linked-role/internal/config"
	"github.com/approvers/sponsor-linked-role/internal/linking"
	"github.com/approvers/sponsor-linked-role/internal/providers/discord"
)

// NewRouter creates a new HTTP router
func NewRouter(cfg *config.Config, svc *linking.Service, discordClient *discord.Client) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(SecurityHeadersMiddleware(cfg))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AppURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Linking flow (rate limited per IP)
	limiter := NewRateLimiter(rate.Every(time.Second), 10)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter))

		r.Get("/linked-role", HandleLinkedRole(cfg, svc))
		r.Get("/discord-oauth-callback", HandleDiscordCallback(cfg, svc))
		r.Get("/github-oauth-callback", HandleGitHubCallback(cfg, svc))
		r.Post("/update-metadata", HandleUpdateMetadata(svc))
		r.Get("/registor", HandleRegister(discordClient))
	})

	r.Get("/", HandleRoot())

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
