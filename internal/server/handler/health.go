package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// EngineHealth is the subset of the cycle driver the health endpoint reads.
type EngineHealth interface {
	Provenance() domain.Provenance
	LastCycleDuration() time.Duration
}

// PersistenceHealth exposes the write-failure counter of the state store.
type PersistenceHealth interface {
	WriteFailures() uint64
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	engine  EngineHealth
	persist PersistenceHealth
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided collaborators.
func NewHealthHandler(engine EngineHealth, persist PersistenceHealth, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		engine:  engine,
		persist: persist,
		started: time.Now().UTC(),
		logger:  logger,
	}
}

// HealthCheck reports liveness plus the two signals an operator needs at a
// glance: whether market data is live or synthetic, and whether state writes
// have been failing.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	failures := uint64(0)
	if h.persist != nil {
		failures = h.persist.WriteFailures()
	}
	if failures > 0 {
		status = "degraded"
	}

	body := map[string]any{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         time.Since(h.started).Round(time.Second).String(),
		"write_failures": failures,
	}
	if h.engine != nil {
		body["data_provenance"] = string(h.engine.Provenance())
		body["last_cycle"] = h.engine.LastCycleDuration().String()
	}
	writeJSON(w, http.StatusOK, body)
}
