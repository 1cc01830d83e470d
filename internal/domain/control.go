package domain

import "time"

// ControlState holds the durable operator-settable flags that gate trade
// admission. It persists across restarts; the zero value is the default
// (not paused, kill switch off).
type ControlState struct {
	Paused     bool      `json:"paused"`
	KillSwitch bool      `json:"kill_switch"`
	Reason     string    `json:"reason"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DenyReason explains why the admission gate refused trading.
type DenyReason string

const (
	DenyReasonNone               DenyReason = "none"
	DenyReasonKillSwitchActive   DenyReason = "kill_switch_active"
	DenyReasonPaused             DenyReason = "paused"
	DenyReasonRateLimited        DenyReason = "rate_limited"
	DenyReasonControlUnavailable DenyReason = "control_unavailable"
)

// GateDecision is the admission verdict for one scheduling cycle. It is
// recomputed fresh on each query and never cached beyond a cycle.
type GateDecision struct {
	Allowed   bool       `json:"allowed"`
	Reason    DenyReason `json:"reason"`
	CheckedAt time.Time  `json:"checked_at"`
}
