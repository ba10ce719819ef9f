package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"portfolio.admin/config"
)

func SetupRouter(h *Handler, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	if cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.AI.Timeout + 15*time.Second))

	r.Use(CORS(CORSConfig{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey", "X-Request-ID"},
		MaxAge:         86400,
	}))

	limit := func(next http.Handler) http.Handler { return next }
	if h.limiter != nil {
		limit = NewRateLimiter(h.limiter, logger).Middleware
	}

	r.Get("/health", h.Health)

	// Edge functions used by the admin dashboard
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(limit)
		r.Use(JSONOnly)
		r.Post("/admin-auth", h.AdminAuth)
		r.Post("/admin-data", h.AdminData)
		r.Post("/generate-content", h.GenerateContent)
		r.Post("/generate-thumbnail", h.GenerateThumbnail)
	})

	// Public site
	r.Route("/api", func(r chi.Router) {
		r.Use(limit)
		r.Get("/content/{table}", h.ListContent)
		r.Get("/content/{table}/{id}", h.GetContent)
		r.Get("/verse-of-the-day", h.VerseOfTheDay)
	})

	if h.objects != nil {
		r.Get("/storage/*", h.Object)
	}

	return r
}
