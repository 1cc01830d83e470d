package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// EngineStatus is the subset of the cycle driver the status endpoints read.
type EngineStatus interface {
	LastDecision() domain.GateDecision
	Stats(ctx context.Context) domain.PerformanceStats
	Positions(ctx context.Context) []domain.ValuedPosition
}

// ActivityReader provides read access to the bounded activity log.
type ActivityReader interface {
	Recent(limit int) []domain.ActivityRecord
}

// StatusHandler serves read-only engine state: gate status, ledger
// performance, open positions, activity, and execution history.
type StatusHandler struct {
	engine   EngineStatus
	control  domain.ControlStore
	activity ActivityReader
	// history is optional; endpoints depending on it 404 when absent.
	history domain.ExecutionStore
	logger  *slog.Logger
}

// NewStatusHandler creates a StatusHandler. history may be nil.
func NewStatusHandler(engine EngineStatus, control domain.ControlStore, activity ActivityReader, history domain.ExecutionStore, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		engine:   engine,
		control:  control,
		activity: activity,
		history:  history,
		logger:   logger,
	}
}

// GetStatus returns the current admission state and ledger performance.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "status")

	decision := h.engine.LastDecision()
	body := map[string]any{
		"gate": map[string]any{
			"allowed":    decision.Allowed,
			"reason":     string(decision.Reason),
			"checked_at": decision.CheckedAt,
		},
		"performance": h.engine.Stats(r.Context()),
	}

	state, err := h.control.Load(r.Context())
	if err != nil {
		// Fail-closed is the gate's job; here we surface the outage itself.
		log.WarnContext(r.Context(), "control state unavailable", slog.String("error", err.Error()))
		body["control"] = map[string]any{"available": false}
	} else {
		body["control"] = map[string]any{
			"available":   true,
			"paused":      state.Paused,
			"kill_switch": state.KillSwitch,
			"reason":      state.Reason,
			"updated_at":  state.UpdatedAt,
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// ListPositions returns open positions valued at current prices.
// GET /api/positions
func (h *StatusHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.engine.Positions(r.Context())
	if positions == nil {
		positions = []domain.ValuedPosition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

// ListActivity returns the most recent activity records, newest last.
// GET /api/activity
func (h *StatusHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	records := h.activity.Recent(parseLimit(r))
	if records == nil {
		records = []domain.ActivityRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": records,
		"count":    len(records),
	})
}

// executionView is the wire shape for one execution history row.
type executionView struct {
	ID             string  `json:"id"`
	OpportunityID  string  `json:"opportunity_id"`
	Attempted      bool    `json:"attempted"`
	Success        bool    `json:"success"`
	LegsExecuted   int     `json:"legs_executed"`
	LegsFailed     int     `json:"legs_failed"`
	RealizedProfit float64 `json:"realized_profit"`
	Error          string  `json:"error,omitempty"`
	StartedAt      string  `json:"started_at"`
	CompletedAt    string  `json:"completed_at"`
}

// ListExecutions returns recent execution history from the long-term store.
// GET /api/executions
func (h *StatusHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "execution history store not configured")
		return
	}
	list, err := h.history.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		logHandler(h.logger, "executions").ErrorContext(r.Context(), "list executions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	views := make([]executionView, 0, len(list))
	for _, res := range list {
		views = append(views, executionView{
			ID:             res.ID,
			OpportunityID:  res.OpportunityID,
			Attempted:      res.Attempted,
			Success:        res.Success,
			LegsExecuted:   res.LegsExecuted,
			LegsFailed:     res.LegsFailed,
			RealizedProfit: res.RealizedProfit,
			Error:          res.ErrorMessage(),
			StartedAt:      res.StartedAt.UTC().Format(time.RFC3339),
			CompletedAt:    res.CompletedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": views,
		"count":      len(views),
	})
}
