package domain

import "time"

// Position is the paper ledger's view of one market. Quantity is signed
// (positive long, negative short). Positions are never deleted; quantity may
// return to zero while realized P&L accumulates.
type Position struct {
	MarketID      string  `json:"market_id"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

// ValuedPosition is a position projected against a supplied current price.
type ValuedPosition struct {
	Position
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// TradeRecord is one simulated fill in the bounded trade ledger.
type TradeRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Exchange    string    `json:"exchange"`
	MarketID    string    `json:"market_id"`
	Action      LegAction `json:"action"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	RealizedPnL float64   `json:"realized_pnl"`
}

// PerformanceStats aggregates ledger performance over the bounded trade ledger.
type PerformanceStats struct {
	CashBalance   float64 `json:"cash_balance"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	OpenPositions int     `json:"open_positions"`
	TotalTrades   int     `json:"total_trades"`
	WinRate       float64 `json:"win_rate"`
}

// LedgerSnapshot is the durable form of the paper ledger, persisted through
// the crash-safe state store and rehydrated at process start.
type LedgerSnapshot struct {
	CashBalance float64             `json:"cash_balance"`
	Positions   map[string]Position `json:"positions"`
	Trades      []TradeRecord       `json:"trades"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
