package domain

import "context"

// PriceSource supplies live price snapshots keyed by market identifier, used
// for ledger valuation and synthetic candidate generation.
type PriceSource interface {
	Prices(ctx context.Context) (map[string]float64, error)
}

// OpportunitySource supplies candidate opportunities for one scheduling
// cycle. The cycle driver substitutes synthetic candidates and tags the
// cycle's provenance when the source is unavailable.
type OpportunitySource interface {
	Candidates(ctx context.Context) ([]ArbitrageOpportunity, error)
}
