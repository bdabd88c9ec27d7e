package console

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"haforge/pkg/db"
)

// RouterOptions tunes the middleware stack around the API routes.
type RouterOptions struct {
	AllowedOrigins []string

	// Telemetry, when set, wraps the API subtree for tracing and request logs.
	Telemetry func(http.Handler) http.Handler
}

// Routes constructs the chi router containing all console endpoints.
func (a *API) Routes(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(100, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.Telemetry != nil {
			r.Use(opts.Telemetry)
		}

		r.Get("/proxmox_creds", a.handleListCreds)
		r.Post("/proxmox_creds", a.handleCreateCred)

		r.Get("/servers", a.handleListServers)
		r.Post("/servers", a.handleCreateServer)
		r.Patch("/servers/{id}", a.handleUpdateServer)
		r.Post("/replica/{id}", a.handleCreateReplica)

		r.Get("/groups", a.handleListGroups)
		r.Post("/groups", a.handleCreateGroup)

		r.Route("/project/{projectID}", func(r chi.Router) {
			r.Post("/environment", a.handleCreateEnvironment)
			r.Post("/templates", a.handleRunTemplate)
		})
	})

	return r
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		if err := db.Ping(r.Context(), a.db); err != nil {
			respondError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
