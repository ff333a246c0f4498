package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// HealthCheck reports one dependency's availability. A nil error means ready.
type HealthCheck func(ctx context.Context) error

const readinessCheckTimeout = 2 * time.Second

// HealthHandler serves the standard probe endpoints every NetNynja service
// exposes: /healthz, /livez, and /readyz. Liveness never touches
// dependencies; readiness runs every registered check.
type HealthHandler struct {
	service string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a [HealthHandler]. checks maps a dependency name
// (for the /readyz report) to its probe; it may be nil.
func NewHealthHandler(service string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{service: service, checks: checks}
}

// Register mounts the probe endpoints on mux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /livez", h.Livez)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.service,
	})
}

// Livez handles GET /livez. Always ok while the process serves requests.
func (h *HealthHandler) Livez(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz: every registered dependency must answer
// within the probe timeout or the service reports 503.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]bool, len(h.checks))
	allReady := true

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
		err := h.checks[name](ctx)
		cancel()
		ok := err == nil
		results[name] = ok
		if !ok {
			allReady = false
		}
	}

	status := http.StatusOK
	state := "ready"
	if !allReady {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	writeProbe(w, status, map[string]any{
		"status": state,
		"checks": results,
	})
}

// writeProbe emits the probes' plain JSON shape; probes predate the auth
// envelope and Kubernetes only inspects the status code.
func writeProbe(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
