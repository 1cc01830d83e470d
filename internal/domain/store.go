package domain

import (
	"context"
	"time"
)

// ControlStore provides durable access to the operator control flags. Load
// fails closed: when the state cannot be read within the persistence lock
// timeout it returns an error wrapping ErrControlUnavailable rather than a
// possibly-stale permissive default.
type ControlStore interface {
	Load(ctx context.Context) (ControlState, error)
	Store(ctx context.Context, state ControlState) error
}

// LedgerStore persists and rehydrates paper-ledger snapshots.
type LedgerStore interface {
	Load(ctx context.Context) (LedgerSnapshot, error)
	Store(ctx context.Context, snap LedgerSnapshot) error
}

// ActivitySink receives append-only structured activity records. Appends are
// best-effort; a full or failing sink must not block the execution core.
type ActivitySink interface {
	Append(ctx context.Context, rec ActivityRecord) error
}

// TradeCounter tracks admitted trade attempts for rolling rate limits.
type TradeCounter interface {
	// CountSince returns how many trades were recorded within the window
	// ending now.
	CountSince(ctx context.Context, window time.Duration) (int, error)
	// Record registers one admitted trade attempt at the current time.
	Record(ctx context.Context) error
}

// ExecutionStore is the long-term history store for execution results,
// consumed by reporting. The engine runs fully without one configured.
type ExecutionStore interface {
	Create(ctx context.Context, res ExecutionResult) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionResult, error)
	SumProfit(ctx context.Context, since time.Time) (float64, error)
}

// OpportunityStore is the long-term history store for detected opportunities.
type OpportunityStore interface {
	Create(ctx context.Context, opp ArbitrageOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
}
