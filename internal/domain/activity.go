package domain

import "time"

// ActivityType classifies entries in the append-only activity log.
type ActivityType string

const (
	ActivityOpportunityFound ActivityType = "opportunity_found"
	ActivityTradeExecuted    ActivityType = "trade_executed"
	ActivityAlertTriggered   ActivityType = "alert_triggered"
	ActivityKillSwitch       ActivityType = "kill_switch"
)

// ActivityRecord is one structured entry in the size-bounded activity log.
// Records are consumed by reporting and notification collaborators and never
// read back by the execution core.
type ActivityRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      ActivityType   `json:"type"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Provenance tags where a cycle's market data came from.
type Provenance string

const (
	ProvenanceLive      Provenance = "live"
	ProvenanceSynthetic Provenance = "synthetic"
)
