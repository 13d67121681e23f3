package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/exportlog"
)

// NewRouter creates a chi router with all status API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(exp *export.Exporter, log exportlog.Log, routes []export.Route, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(exp, log, routes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/routes", h.ListRoutes)
	r.Get("/history", h.History)
	r.Post("/export", h.TriggerExport)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
