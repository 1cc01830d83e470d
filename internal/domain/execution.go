package domain

import "time"

// OrderResult wraps a venue's response to an order placement. A venue may
// report a non-success outcome without returning an error (for example a
// rejected order); the executor treats both the same way.
type OrderResult struct {
	Success   bool
	FillPrice float64
	Message   string
}

// ExecutedLeg records one leg that actually ran, in the order it ran.
type ExecutedLeg struct {
	Leg       ArbitrageLeg `json:"leg"`
	FillPrice float64      `json:"fill_price"`
	FilledAt  time.Time    `json:"filled_at"`
}

// RollbackDetail captures one compensation attempt during a rollback pass.
type RollbackDetail struct {
	Leg          ArbitrageLeg `json:"leg"`
	Compensation ArbitrageLeg `json:"compensation"`
	Success      bool         `json:"success"`
	FillPrice    float64      `json:"fill_price,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// RollbackResult is the outcome of a best-effort compensation pass over
// already-executed legs. SuccessfulRollbacks + FailedRollbacks always equals
// TotalLegs: every attempt is recorded, none is retried or escalated.
type RollbackResult struct {
	TotalLegs           int              `json:"total_legs"`
	SuccessfulRollbacks int              `json:"successful_rollbacks"`
	FailedRollbacks     int              `json:"failed_rollbacks"`
	Details             []RollbackDetail `json:"details"`
}

// ExecutionResult is the immutable outcome of one executor invocation. It is
// created once per attempt and owned by the caller for ledger application,
// history recording, and notification.
type ExecutionResult struct {
	ID            string
	OpportunityID string
	// Attempted is false when the attempt was rejected before any leg ran
	// (structural or ordering violation, or gate denial).
	Attempted      bool
	Success        bool
	LegsExecuted   int
	LegsFailed     int
	RealizedProfit float64
	ExecutedLegs   []ExecutedLeg
	Err            error
	Rollback       *RollbackResult
	StartedAt      time.Time
	CompletedAt    time.Time
}

// ErrorMessage returns the failure description, or "" on success.
func (r ExecutionResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
