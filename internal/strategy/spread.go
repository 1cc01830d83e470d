// Package strategy produces candidate opportunities for the cycle driver.
// Price discovery is deliberately simple here; the engine's hard guarantees
// live in the executor and persistence layers, and any opportunity source
// satisfying domain.OpportunitySource can replace this one.
package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crossarb/paperbot/internal/domain"
)

// MarketPair maps one logical instrument to its venue-specific market IDs.
type MarketPair struct {
	Symbol string
	// Markets maps venue name to that venue's market ID for the instrument.
	Markets map[string]string
}

// SpreadConfig holds scanner parameters.
type SpreadConfig struct {
	// MinEdgeBps is the minimum cross-venue spread, in basis points of the
	// buy price, for a candidate to be emitted.
	MinEdgeBps float64
	// SizePerLeg is the quantity placed on each leg.
	SizePerLeg float64
	// PreferredVenue is moved to the first leg when it participates.
	PreferredVenue string
}

// SpreadScanner detects two-way cross-venue spreads from a price source and
// emits validated, preferred-first-ordered opportunities.
type SpreadScanner struct {
	cfg    SpreadConfig
	pairs  []MarketPair
	prices domain.PriceSource
	logger *slog.Logger
}

// NewSpreadScanner creates a scanner over the given instrument pairs.
func NewSpreadScanner(cfg SpreadConfig, pairs []MarketPair, prices domain.PriceSource, logger *slog.Logger) *SpreadScanner {
	return &SpreadScanner{
		cfg:    cfg,
		pairs:  pairs,
		prices: prices,
		logger: logger.With(slog.String("component", "spread_scanner")),
	}
}

// Candidates scans every pair for the widest buy-low/sell-high spread across
// venues and returns one candidate per qualifying pair.
func (s *SpreadScanner) Candidates(ctx context.Context) ([]domain.ArbitrageOpportunity, error) {
	snapshot, err := s.prices.Prices(ctx)
	if err != nil {
		return nil, fmt.Errorf("strategy: price snapshot: %w", err)
	}

	var out []domain.ArbitrageOpportunity
	for _, pair := range s.pairs {
		opp, ok := s.scanPair(pair, snapshot)
		if !ok {
			continue
		}
		out = append(out, opp)
	}
	return out, nil
}

func (s *SpreadScanner) scanPair(pair MarketPair, prices map[string]float64) (domain.ArbitrageOpportunity, bool) {
	var (
		buyVenue, sellVenue   string
		buyMarket, sellMarket string
		lowest, highest       float64
	)
	for venue, marketID := range pair.Markets {
		price, ok := prices[marketID]
		if !ok || price <= 0 {
			continue
		}
		if buyVenue == "" || price < lowest {
			buyVenue, buyMarket, lowest = venue, marketID, price
		}
		if sellVenue == "" || price > highest {
			sellVenue, sellMarket, highest = venue, marketID, price
		}
	}
	if buyVenue == "" || buyVenue == sellVenue {
		return domain.ArbitrageOpportunity{}, false
	}

	edgeBps := (highest - lowest) / lowest * 10000
	if edgeBps < s.cfg.MinEdgeBps {
		return domain.ArbitrageOpportunity{}, false
	}

	legs := []domain.ArbitrageLeg{
		{Exchange: buyVenue, Action: domain.LegActionBuy, MarketID: buyMarket, Price: lowest, Quantity: s.cfg.SizePerLeg, Order: 1},
		{Exchange: sellVenue, Action: domain.LegActionSell, MarketID: sellMarket, Price: highest, Quantity: s.cfg.SizePerLeg, Order: 2},
	}
	legs = domain.SortPreferredFirst(legs, s.cfg.PreferredVenue)

	expected := (highest - lowest) * s.cfg.SizePerLeg
	opp, err := domain.NewOpportunity(domain.KindTwoWay, legs, expected)
	if err != nil {
		// Construction only fails on non-positive sizes from misconfiguration.
		s.logger.Warn("discarding malformed candidate",
			slog.String("symbol", pair.Symbol),
			slog.String("error", err.Error()),
		)
		return domain.ArbitrageOpportunity{}, false
	}

	s.logger.Debug("spread candidate",
		slog.String("symbol", pair.Symbol),
		slog.String("buy_venue", buyVenue),
		slog.String("sell_venue", sellVenue),
		slog.Float64("edge_bps", edgeBps),
	)
	return opp, true
}

var _ domain.OpportunitySource = (*SpreadScanner)(nil)
