package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(CorrelationID)
	r.Use(RequestLogger(logger))
	r.Use(Recover(logger))

	r.Get("/health", h.Health)
	r.Get("/openapi.yaml", h.OpenAPI)

	r.Post("/api/tickets", h.CreateTicket)

	return r
}
