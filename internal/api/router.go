package api

import (
	"encoding/json"
	"hlsfetch/internal/session"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource provides the progress of the running download.
type StatusSource interface {
	Snapshot() session.Snapshot
}

type API struct {
	source StatusSource
}

// New returns the handler serving /status and /metrics.
func New(source StatusSource) http.Handler {
	api := &API{source: source}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", api.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if a.source == nil {
		http.Error(w, "No download in progress", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.source.Snapshot()); err != nil {
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}
