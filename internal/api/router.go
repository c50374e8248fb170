package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"roomchat/internal/api/middleware"
	"roomchat/internal/handlers"
)

type Handlers struct {
	Rooms     *handlers.RoomHandlers
	Health    *handlers.HealthHandlers
	WebSocket *handlers.WebSocketHandlers
	Verifier  handlers.Verifier
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health.Health)
	r.Get("/ws", h.WebSocket.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(handlers.RequireAuth(h.Verifier))

		r.Get("/rooms", h.Rooms.ListRooms)
		r.Post("/rooms", h.Rooms.CreateRoom)
		r.Get("/rooms/{id}/messages", h.Rooms.GetRoomMessages)
		r.Get("/users", h.Rooms.ListUsers)
	})

	return r
}
