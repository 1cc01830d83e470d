// Package ledger simulates settlement of executed legs against an in-memory
// position map and cash balance. No real capital moves; the ledger is the
// paper-mode system of record, persisted periodically through the crash-safe
// state store and rehydrated at process start.
package ledger

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossarb/paperbot/internal/domain"
)

// defaultMaxTrades bounds the in-memory trade ledger.
const defaultMaxTrades = 1000

// Ledger tracks simulated positions, cash, and the bounded trade history.
// It is mutated only by the cycle driver applying execution results.
type Ledger struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*domain.Position
	trades    []domain.TradeRecord
	maxTrades int
	logger    *slog.Logger
}

// New creates a fresh ledger with the given starting cash balance.
func New(startingBalance float64, logger *slog.Logger) *Ledger {
	return &Ledger{
		cash:      startingBalance,
		positions: make(map[string]*domain.Position),
		maxTrades: defaultMaxTrades,
		logger:    logger.With(slog.String("component", "ledger")),
	}
}

// FromSnapshot rebuilds a ledger from a persisted snapshot.
func FromSnapshot(snap domain.LedgerSnapshot, logger *slog.Logger) *Ledger {
	l := New(snap.CashBalance, logger)
	for id, pos := range snap.Positions {
		p := pos
		l.positions[id] = &p
	}
	if n := len(snap.Trades); n > l.maxTrades {
		snap.Trades = snap.Trades[n-l.maxTrades:]
	}
	l.trades = append(l.trades, snap.Trades...)
	return l
}

// Apply settles an execution result: every executed leg fill is applied, and
// when a rollback ran, every successful compensation fill as well. Failed
// compensations left real exposure behind; the ledger reflects that truthfully
// rather than pretending the trade was reversed.
func (l *Ledger) Apply(res domain.ExecutionResult) {
	if !res.Attempted {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, executed := range res.ExecutedLegs {
		l.applyFill(executed.Leg.Exchange, executed.Leg.MarketID, executed.Leg.Action, executed.FillPrice, executed.Leg.Quantity)
	}
	if res.Rollback != nil {
		for _, detail := range res.Rollback.Details {
			if !detail.Success {
				continue
			}
			fill := detail.FillPrice
			if fill <= 0 {
				fill = detail.Compensation.Price
			}
			l.applyFill(detail.Compensation.Exchange, detail.Compensation.MarketID, detail.Compensation.Action, fill, detail.Compensation.Quantity)
		}
	}
}

// applyFill updates cash and the market's position for one fill. Same-direction
// fills update the weighted-average entry; opposing fills realize P&L on the
// closed quantity and may zero or flip the position. Callers hold l.mu.
func (l *Ledger) applyFill(exchange, marketID string, action domain.LegAction, price, qty float64) {
	signed := qty
	if action == domain.LegActionSell {
		signed = -qty
	}
	l.cash += domain.ArbitrageLeg{Action: action, Quantity: qty}.Cashflow(price)

	pos, ok := l.positions[marketID]
	if !ok {
		pos = &domain.Position{MarketID: marketID}
		l.positions[marketID] = pos
	}

	realized := 0.0
	switch {
	case pos.Quantity == 0 || sameSign(pos.Quantity, signed):
		// Weighted-average entry on same-direction adds.
		total := pos.Quantity + signed
		if total != 0 {
			pos.AvgEntryPrice = (pos.AvgEntryPrice*math.Abs(pos.Quantity) + price*qty) / math.Abs(total)
		}
		pos.Quantity = total
	default:
		closed := min(math.Abs(pos.Quantity), qty)
		if pos.Quantity > 0 {
			realized = (price - pos.AvgEntryPrice) * closed
		} else {
			realized = (pos.AvgEntryPrice - price) * closed
		}
		pos.RealizedPnL += realized
		pos.Quantity += signed
		if pos.Quantity == 0 {
			pos.AvgEntryPrice = 0
		} else if !sameSign(pos.Quantity-signed, pos.Quantity) {
			// Flipped through zero: the remainder opens at the fill price.
			pos.AvgEntryPrice = price
		}
	}

	l.trades = append(l.trades, domain.TradeRecord{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Exchange:    exchange,
		MarketID:    marketID,
		Action:      action,
		Price:       price,
		Quantity:    qty,
		RealizedPnL: realized,
	})
	if len(l.trades) > l.maxTrades {
		l.trades = l.trades[len(l.trades)-l.maxTrades:]
	}
}

// CashBalance returns the current simulated cash balance.
func (l *Ledger) CashBalance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Position returns the position for a market and whether one exists.
func (l *Ledger) Position(marketID string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[marketID]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions values every position at the supplied current prices. Markets
// without a supplied price are valued at their average entry (zero unrealized).
func (l *Ledger) Positions(prices map[string]float64) []domain.ValuedPosition {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ValuedPosition, 0, len(l.positions))
	for _, pos := range l.positions {
		current, ok := prices[pos.MarketID]
		if !ok {
			current = pos.AvgEntryPrice
		}
		out = append(out, domain.ValuedPosition{
			Position:      *pos,
			CurrentPrice:  current,
			UnrealizedPnL: (current - pos.AvgEntryPrice) * pos.Quantity,
		})
	}
	return out
}

// Stats aggregates performance over the bounded trade ledger.
func (l *Ledger) Stats(prices map[string]float64) domain.PerformanceStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := domain.PerformanceStats{
		CashBalance: l.cash,
		TotalTrades: len(l.trades),
	}

	wins, closes := 0, 0
	for _, tr := range l.trades {
		stats.RealizedPnL += tr.RealizedPnL
		if tr.RealizedPnL != 0 {
			closes++
			if tr.RealizedPnL > 0 {
				wins++
			}
		}
	}
	if closes > 0 {
		stats.WinRate = float64(wins) / float64(closes)
	}

	for _, pos := range l.positions {
		if pos.Quantity != 0 {
			stats.OpenPositions++
			if current, ok := prices[pos.MarketID]; ok {
				stats.UnrealizedPnL += (current - pos.AvgEntryPrice) * pos.Quantity
			}
		}
	}
	return stats
}

// Snapshot returns the durable form of the ledger for persistence.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := domain.LedgerSnapshot{
		CashBalance: l.cash,
		Positions:   make(map[string]domain.Position, len(l.positions)),
		Trades:      make([]domain.TradeRecord, len(l.trades)),
		UpdatedAt:   time.Now().UTC(),
	}
	for id, pos := range l.positions {
		snap.Positions[id] = *pos
	}
	copy(snap.Trades, l.trades)
	return snap
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}
