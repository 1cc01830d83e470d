package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/crossarb/paperbot/internal/domain"
	"github.com/crossarb/paperbot/internal/notify"
	"github.com/crossarb/paperbot/internal/persist"
)

// Notifier is the subset of the notification system the control surface uses.
// Alert bypasses event filtering: a kill switch always reaches the operator.
type Notifier interface {
	Alert(ctx context.Context, msg notify.Message) error
}

// ControlHandler serves the operator control endpoints: pause, resume, and
// kill switch. The next admission decision picks the new flags up from the
// durable control file; there is no in-process shortcut.
type ControlHandler struct {
	control  *persist.ControlStore
	notifier Notifier
	logger   *slog.Logger
}

// NewControlHandler creates a ControlHandler. notifier may be nil.
func NewControlHandler(control *persist.ControlStore, notifier Notifier, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{
		control:  control,
		notifier: notifier,
		logger:   logger,
	}
}

type controlRequest struct {
	Reason string `json:"reason"`
}

func decodeControlRequest(r *http.Request) controlRequest {
	var req controlRequest
	// Body is optional; an empty reason is allowed.
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req
}

// Pause suspends trading until resumed.
// POST /api/control/pause
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	req := decodeControlRequest(r)
	if err := h.control.SetPaused(r.Context(), true, req.Reason); err != nil {
		h.writeControlError(w, r, "pause", err)
		return
	}
	logHandler(h.logger, "control").InfoContext(r.Context(), "trading paused",
		slog.String("reason", req.Reason),
	)
	writeJSON(w, http.StatusOK, map[string]any{"paused": true, "reason": req.Reason})
}

// Resume lifts a pause. It does not touch the kill switch.
// POST /api/control/resume
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	req := decodeControlRequest(r)
	if err := h.control.SetPaused(r.Context(), false, req.Reason); err != nil {
		h.writeControlError(w, r, "resume", err)
		return
	}
	logHandler(h.logger, "control").InfoContext(r.Context(), "trading resumed",
		slog.String("reason", req.Reason),
	)
	writeJSON(w, http.StatusOK, map[string]any{"paused": false, "reason": req.Reason})
}

// Kill activates the kill switch. There is no HTTP endpoint to clear it;
// releasing the kill switch requires editing the control file by hand.
// POST /api/control/kill
func (h *ControlHandler) Kill(w http.ResponseWriter, r *http.Request) {
	req := decodeControlRequest(r)
	if err := h.control.ActivateKillSwitch(r.Context(), req.Reason); err != nil {
		h.writeControlError(w, r, "kill", err)
		return
	}
	logHandler(h.logger, "control").WarnContext(r.Context(), "kill switch activated",
		slog.String("reason", req.Reason),
	)
	if h.notifier != nil {
		_ = h.notifier.Alert(r.Context(), notify.Message{
			Event: domain.ActivityKillSwitch,
			Title: "Kill switch activated",
			Body:  req.Reason,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"kill_switch": true, "reason": req.Reason})
}

func (h *ControlHandler) writeControlError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logHandler(h.logger, "control").ErrorContext(r.Context(), op+" failed",
		slog.String("error", err.Error()),
	)
	if errors.Is(err, domain.ErrControlUnavailable) || errors.Is(err, domain.ErrLockTimeout) {
		writeError(w, http.StatusServiceUnavailable, "control state is locked, retry shortly")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to update control state")
}
