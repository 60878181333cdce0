package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"studyroom-relay/internal/handlers"
	"studyroom-relay/internal/logger"
	"studyroom-relay/internal/metrics"
	"studyroom-relay/internal/middleware"
)

func New(
	roomHandler *handlers.RoomHandler,
	upgradeLimiter *middleware.RateLimiter,
	gatherer prometheus.Gatherer,
	rooms func() int,
	allowedOrigins []string,
	log *logger.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.NotFound)

	sessionsCORS := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	r.Get("/health", handlers.Health(rooms))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	// ──── Room Routes ────
	r.Route("/api/room/{roomId}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sessionsCORS.Handler)
			r.Get("/sessions", roomHandler.Sessions)
			r.Options("/sessions", func(w http.ResponseWriter, r *http.Request) {})
		})

		r.Group(func(r chi.Router) {
			r.Use(upgradeLimiter.Middleware)
			r.Get("/", roomHandler.WebSocket)
			r.Get("/websocket", roomHandler.WebSocket)
		})
	})

	return r
}
