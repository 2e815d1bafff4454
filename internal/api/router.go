package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/pixelboard/internal/api/middleware"
	"github.com/eldtechnologies/pixelboard/internal/handlers"
)

// Options carries what the router needs beyond the handlers.
type Options struct {
	CORSOrigins []string
	StaticDir   string

	// TrustProxy takes client IPs from proxy headers instead of the
	// connection. Only safe behind a proxy that sets them.
	TrustProxy bool

	// PlaceLimiter caps request volume on POST /api/place. Nil disables it.
	PlaceLimiter *middleware.RateLimiter

	// Realtime serves GET /ws.
	Realtime http.Handler
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.ProxyHeaders)
	}
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/pixels", h.GetPixels)
		r.Get("/config", h.GetConfig)

		place := r.With()
		if opts.PlaceLimiter != nil {
			place = r.With(opts.PlaceLimiter.Middleware)
		}
		place.Post("/place", h.Place)
	})

	if opts.Realtime != nil {
		r.Get("/ws", opts.Realtime.ServeHTTP)
	}

	// Static client
	staticDir := opts.StaticDir
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	return r
}
