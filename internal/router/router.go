package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/queuejam/backend/internal/config"
	"github.com/queuejam/backend/internal/handlers"
	"github.com/queuejam/backend/internal/middleware"
	"github.com/queuejam/backend/internal/realtime"
	"github.com/queuejam/backend/internal/services"
	"github.com/queuejam/backend/internal/store"
)

// New wires the session store, real-time hub, and services into the HTTP
// surface. All state lives behind the returned handler for the lifetime of
// the process.
func New(cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Core state and services
	sessionStore := store.New()
	hub := realtime.NewHub(sessionStore, cfg.CORSAllowedOrigins)
	spotifyService := services.NewSpotifyService(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	queueService := services.NewQueueService(sessionStore, hub)

	// Handlers
	sessionHandler := handlers.NewSessionHandler(sessionStore)
	requestHandler := handlers.NewRequestHandler(queueService)
	searchHandler := handlers.NewSearchHandler(spotifyService, cfg.SearchTimeout)
	configHandler := handlers.NewConfigHandler(cfg)

	// Rate limiter for search
	searchRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// Liveness
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("queuejam backend is running\n"))
	})

	// Routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Public configuration (whether catalog search is available, etc.)
		r.Get("/config", configHandler.PublicConfig)

		// Session and queue management
		r.Post("/create_session", sessionHandler.Create)
		r.Get("/queue", sessionHandler.Queue)
		r.Post("/request_song", requestHandler.Submit)

		// Catalog search (rate limited)
		r.With(searchRateLimiter.Middleware).Get("/search", searchHandler.Search)
	})

	// Real-time channel, same listening port as the HTTP API
	r.Get("/ws", hub.ServeWS)

	return r
}
