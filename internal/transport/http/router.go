package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"phoneintel/pkg/platform/httputil"
	"phoneintel/pkg/platform/middleware/auth"
	"phoneintel/pkg/platform/middleware/metadata"
	"phoneintel/pkg/platform/middleware/request"
	"phoneintel/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a backing dependency is usable.
type HealthCheck func(ctx context.Context) error

// Routes is implemented by every module that mounts endpoints.
type Routes interface {
	Register(r chi.Router)
}

// Config holds what the router needs from main.
type Config struct {
	Logger    *slog.Logger
	Validator auth.TokenValidator
	Health    map[string]HealthCheck
	// MetricsHandler defaults to the global Prometheus registry.
	MetricsHandler http.Handler
}

// NewRouter wires the shared middleware chain, operational endpoints and
// every module's routes. API routes sit behind optional bearer auth;
// /healthz and /metrics do not.
func NewRouter(cfg Config, modules ...Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.AccessLog(cfg.Logger))

	r.Get("/healthz", healthz(cfg.Health))
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Group(func(api chi.Router) {
		if cfg.Validator != nil {
			api.Use(auth.OptionalAuth(cfg.Validator, cfg.Logger))
		}
		for _, m := range modules {
			m.Register(api)
		}
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": results})
	}
}
