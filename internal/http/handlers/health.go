package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tapbook/salon-booking/pkg/logging"
)

// Pinger checks one dependency. pgxpool.Pool and redis.Client both provide a
// compatible Ping through small adapters in the wiring code.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and dependency readiness.
type HealthHandler struct {
	deps   map[string]Pinger
	logger *logging.Logger
}

func NewHealthHandler(deps map[string]Pinger, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{deps: deps, logger: logger}
}

// Live always answers ok while the process runs.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings each dependency with a short deadline.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, checks)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
