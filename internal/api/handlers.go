package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/halvard/raido/internal/apperr"
	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/exportlog"
)

// Handler holds status API route handlers.
type Handler struct {
	exp    *export.Exporter
	log    exportlog.Log // may be nil
	routes []export.Route
}

// NewHandler creates a new Handler.
func NewHandler(exp *export.Exporter, log exportlog.Log, routes []export.Route) *Handler {
	return &Handler{exp: exp, log: log, routes: routes}
}

// ListRoutes handles GET /routes.
func (h *Handler) ListRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"routes": h.routes})
}

// History handles GET /history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.log == nil {
		writeJSON(w, http.StatusOK, map[string]any{"exports": []exportlog.Row{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.log.History(limit)
	if err != nil {
		slog.Error("history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rows == nil {
		rows = []exportlog.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": rows})
}

// TriggerExport handles POST /export: runs one export synchronously.
func (h *Handler) TriggerExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Path  string `json:"path"`
		Route string `json:"route"`
		Force bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Route == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and route are required"))
		return
	}

	route, ok := findRoute(h.routes, req.Route)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown route: "+req.Route))
		return
	}

	res, err := h.exp.Export(r.Context(), req.Path, route, export.Options{Force: req.Force})
	if err != nil {
		status, msg := exportErrorStatus(err)
		writeJSON(w, status, errorBody(msg))
		return
	}

	body := map[string]any{"result": res}
	if len(res.Failed) > 0 {
		body["failed_images"] = res.FailedPaths()
	}
	writeJSON(w, http.StatusOK, body)
}

// exportErrorStatus maps pipeline errors to HTTP statuses for the caller.
func exportErrorStatus(err error) (int, string) {
	var (
		cfgErr *apperr.ConfigError
		valErr *apperr.ValidationError
		svcErr *apperr.ServiceError
		netErr *apperr.NetworkError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, cfgErr.Error()
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, valErr.Error()
	case errors.As(err, &svcErr):
		return http.StatusBadGateway, svcErr.Error()
	case errors.As(err, &netErr):
		return http.StatusBadGateway, netErr.Error()
	default:
		slog.Error("export failed", slog.String("error", err.Error()))
		return http.StatusInternalServerError, "export failed: " + err.Error()
	}
}

func findRoute(routes []export.Route, name string) (export.Route, bool) {
	for _, r := range routes {
		if r.Name == name {
			return r, true
		}
	}
	return export.Route{}, false
}
