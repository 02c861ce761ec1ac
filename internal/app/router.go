package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteMounter is implemented by every feature handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// NewRouter assembles the HTTP router with the shared middleware stack and
// mounts every handler under /api.
func NewRouter(cfg MiddlewareConfig, handlers ...RouteMounter) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(cfg) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		for _, h := range handlers {
			h.MountRoutes(api)
		}
	})

	return r
}
