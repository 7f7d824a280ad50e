package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mi-ganesh/Document-Editor/internal/api"
	"github.com/mi-ganesh/Document-Editor/internal/metrics"
)

func New(h *api.Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/health", h.Health)
	r.Get("/download/{roomId}", h.Download)
	r.Get("/ws", h.CollabWS)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
