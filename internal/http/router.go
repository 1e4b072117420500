package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docchat/internal/handlers"
	"docchat/internal/service"
	"docchat/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Manager *service.Manager
	// Turns is nil when the turn log is disabled.
	Turns storage.TurnStore
	// HealthChecks maps a dependency name to the Pinger that checks it.
	HealthChecks map[string]handlers.Pinger
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	sessionHandler := handlers.NewSessionHandler(deps.Manager, deps.Turns)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks, deps.Manager)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Post("/sessions", sessionHandler.Create)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Delete)
			r.Post("/documents", sessionHandler.Upload)
			r.Post("/ask", sessionHandler.Ask)
			r.Get("/history", sessionHandler.History)
			r.Delete("/history", sessionHandler.ResetHistory)
			r.Get("/log", sessionHandler.Log)
		})
	})

	return r
}
