// Package statusd is the local observability surface for the watch command:
// a loopback HTTP server exposing health, metrics, and JSON snapshots of the
// cached stores.
package statusd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmarchal/taskdeck/internal/auth"
	"github.com/tmarchal/taskdeck/internal/metrics"
	"github.com/tmarchal/taskdeck/internal/task"
	"github.com/tmarchal/taskdeck/internal/team"
)

// RouterDeps holds all dependencies for the status router.
type RouterDeps struct {
	AuthStore *auth.Store
	TaskStore *task.Store
	TeamStore *team.Store
	Metrics   *metrics.Metrics
}

// sessionSnapshot is the JSON shape for GET /api/state/session.
type sessionSnapshot struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
}

// NewRouter builds the chi router for the status server.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(slogRequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
		r.Get("/api/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/state", func(sr chi.Router) {
		sr.Get("/session", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, sessionSnapshot{
				Authenticated: deps.AuthStore.IsAuthenticated(),
				User:          deps.AuthStore.CurrentUser(),
			})
		})
		sr.Get("/users", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"users": deps.AuthStore.Users()})
		})
		sr.Get("/tasks", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"tasks": deps.TaskStore.Tasks()})
		})
		sr.Get("/teams", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"teams": deps.TeamStore.Teams()})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("status request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
