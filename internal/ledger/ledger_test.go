package ledger

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crossarb/paperbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func executed(exchange string, action domain.LegAction, market string, price, qty float64, order int) domain.ExecutedLeg {
	return domain.ExecutedLeg{
		Leg: domain.ArbitrageLeg{
			Exchange: exchange,
			Action:   action,
			MarketID: market,
			Price:    price,
			Quantity: qty,
			Order:    order,
		},
		FillPrice: price,
		FilledAt:  time.Now().UTC(),
	}
}

func successResult(legs ...domain.ExecutedLeg) domain.ExecutionResult {
	return domain.ExecutionResult{
		Attempted:    true,
		Success:      true,
		LegsExecuted: len(legs),
		ExecutedLegs: legs,
	}
}

func TestRoundTripRealizesProfit(t *testing.T) {
	l := New(1000, testLogger())

	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.45, 100, 1)))
	l.Apply(successResult(executed("alpha", domain.LegActionSell, "M1", 0.55, 100, 1)))

	pos, ok := l.Position("M1")
	require.True(t, ok)
	require.Zero(t, pos.Quantity)
	require.InDelta(t, 10.0, pos.RealizedPnL, 1e-9)
	require.InDelta(t, 1010.0, l.CashBalance(), 1e-9)
}

func TestWeightedAverageEntry(t *testing.T) {
	l := New(1000, testLogger())

	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.40, 100, 1)))
	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.60, 100, 1)))

	pos, ok := l.Position("M1")
	require.True(t, ok)
	require.InDelta(t, 200.0, pos.Quantity, 1e-9)
	require.InDelta(t, 0.50, pos.AvgEntryPrice, 1e-9)
}

func TestPartialClose(t *testing.T) {
	l := New(1000, testLogger())

	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.40, 100, 1)))
	l.Apply(successResult(executed("alpha", domain.LegActionSell, "M1", 0.50, 40, 1)))

	pos, _ := l.Position("M1")
	require.InDelta(t, 60.0, pos.Quantity, 1e-9)
	require.InDelta(t, 0.40, pos.AvgEntryPrice, 1e-9)
	require.InDelta(t, 4.0, pos.RealizedPnL, 1e-9)
}

func TestFlipThroughZero(t *testing.T) {
	l := New(1000, testLogger())

	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.40, 100, 1)))
	l.Apply(successResult(executed("alpha", domain.LegActionSell, "M1", 0.50, 150, 1)))

	pos, _ := l.Position("M1")
	require.InDelta(t, -50.0, pos.Quantity, 1e-9)
	require.InDelta(t, 0.50, pos.AvgEntryPrice, 1e-9)
	require.InDelta(t, 10.0, pos.RealizedPnL, 1e-9)
}

func TestShortPositionRealization(t *testing.T) {
	l := New(1000, testLogger())

	l.Apply(successResult(executed("alpha", domain.LegActionSell, "M1", 0.60, 100, 1)))
	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.45, 100, 1)))

	pos, _ := l.Position("M1")
	require.Zero(t, pos.Quantity)
	require.InDelta(t, 15.0, pos.RealizedPnL, 1e-9)
}

func TestApplySkipsNotAttempted(t *testing.T) {
	l := New(1000, testLogger())
	l.Apply(domain.ExecutionResult{Attempted: false})
	require.InDelta(t, 1000.0, l.CashBalance(), 1e-9)
	require.Empty(t, l.Positions(nil))
}

func TestApplySettlesSuccessfulCompensations(t *testing.T) {
	l := New(1000, testLogger())

	buy := executed("alpha", domain.LegActionBuy, "M1", 0.45, 100, 1)
	res := domain.ExecutionResult{
		Attempted:    true,
		Success:      false,
		LegsExecuted: 1,
		LegsFailed:   1,
		ExecutedLegs: []domain.ExecutedLeg{buy},
		Rollback: &domain.RollbackResult{
			TotalLegs:           1,
			SuccessfulRollbacks: 1,
			Details: []domain.RollbackDetail{{
				Leg:          buy.Leg,
				Compensation: buy.Leg.Compensation(),
				Success:      true,
				FillPrice:    0.44,
			}},
		},
	}
	l.Apply(res)

	pos, _ := l.Position("M1")
	require.Zero(t, pos.Quantity)
	// Unwound at a worse price: a small realized loss, honestly recorded.
	require.InDelta(t, -1.0, pos.RealizedPnL, 1e-9)
}

func TestStatsAndValuation(t *testing.T) {
	l := New(1000, testLogger())

	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.40, 100, 1)))
	l.Apply(successResult(executed("beta", domain.LegActionBuy, "M2", 0.20, 50, 1)))
	l.Apply(successResult(executed("alpha", domain.LegActionSell, "M1", 0.50, 100, 1)))

	prices := map[string]float64{"M2": 0.30}
	stats := l.Stats(prices)
	require.InDelta(t, 10.0, stats.RealizedPnL, 1e-9)
	require.InDelta(t, 5.0, stats.UnrealizedPnL, 1e-9)
	require.Equal(t, 1, stats.OpenPositions)
	require.Equal(t, 3, stats.TotalTrades)
	require.InDelta(t, 1.0, stats.WinRate, 1e-9)

	valued := l.Positions(prices)
	require.Len(t, valued, 2)
}

func TestSnapshotRestore(t *testing.T) {
	l := New(1000, testLogger())
	l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.40, 100, 1)))

	snap := l.Snapshot()
	require.InDelta(t, 960.0, snap.CashBalance, 1e-9)
	require.Len(t, snap.Trades, 1)

	restored := FromSnapshot(snap, testLogger())
	require.InDelta(t, l.CashBalance(), restored.CashBalance(), 1e-9)
	pos, ok := restored.Position("M1")
	require.True(t, ok)
	require.InDelta(t, 100.0, pos.Quantity, 1e-9)
	require.InDelta(t, 0.40, pos.AvgEntryPrice, 1e-9)
}

func TestTradeLedgerBounded(t *testing.T) {
	l := New(0, testLogger())
	l.maxTrades = 5

	for i := 0; i < 8; i++ {
		l.Apply(successResult(executed("alpha", domain.LegActionBuy, "M1", 0.40, 1, 1)))
	}
	require.Equal(t, 5, l.Stats(nil).TotalTrades)
}
