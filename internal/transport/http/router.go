package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"questhive-backend/internal/handler"
	"questhive-backend/internal/httputil"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	DispatchHandler *handler.DispatchHandler
}

// NewRouter creates and configures a new Chi router.
// The dispatch trigger is POST-only; chi answers 405 for anything else.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Invoked by the external scheduler, gated by the shared secret inside
	// the handler.
	r.Post("/internal/notifications/dispatch", cfg.DispatchHandler.Trigger)

	return r
}
