package strategy

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossarb/paperbot/internal/domain"
)

type staticPrices map[string]float64

func (p staticPrices) Prices(context.Context) (map[string]float64, error) {
	return p, nil
}

func testScanner(prices staticPrices) *SpreadScanner {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	pairs := []MarketPair{{
		Symbol: "WIDGET",
		Markets: map[string]string{
			"alpha": "alpha:WIDGET",
			"beta":  "beta:WIDGET",
		},
	}}
	return NewSpreadScanner(SpreadConfig{
		MinEdgeBps:     100,
		SizePerLeg:     100,
		PreferredVenue: "alpha",
	}, pairs, prices, logger)
}

func TestCandidatesEmitsSpread(t *testing.T) {
	s := testScanner(staticPrices{"alpha:WIDGET": 0.45, "beta:WIDGET": 0.55})

	opps, err := s.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	require.Equal(t, domain.KindTwoWay, opp.Kind)
	require.NoError(t, opp.Validate())
	require.True(t, domain.ValidatePreferredFirst(opp, "alpha"))
	// Buy on the cheap venue (alpha, the preferred one), sell on the rich one.
	require.Equal(t, "alpha", opp.Legs[0].Exchange)
	require.Equal(t, domain.LegActionBuy, opp.Legs[0].Action)
	require.Equal(t, "beta", opp.Legs[1].Exchange)
	require.Equal(t, domain.LegActionSell, opp.Legs[1].Action)
	require.InDelta(t, 10.0, opp.ExpectedProfit, 1e-9)
}

func TestCandidatesPreferredVenueOrderedFirstEvenWhenSelling(t *testing.T) {
	// Preferred venue is the expensive side; its sell leg must still be first.
	s := testScanner(staticPrices{"alpha:WIDGET": 0.55, "beta:WIDGET": 0.45})

	opps, err := s.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	require.Equal(t, "alpha", opps[0].Legs[0].Exchange)
	require.Equal(t, domain.LegActionSell, opps[0].Legs[0].Action)
	require.Equal(t, 1, opps[0].Legs[0].Order)
	require.True(t, domain.ValidatePreferredFirst(opps[0], "alpha"))
}

func TestCandidatesSkipsNarrowSpread(t *testing.T) {
	s := testScanner(staticPrices{"alpha:WIDGET": 0.500, "beta:WIDGET": 0.501})
	opps, err := s.Candidates(context.Background())
	require.NoError(t, err)
	require.Empty(t, opps)
}

func TestCandidatesSkipsMissingPrices(t *testing.T) {
	s := testScanner(staticPrices{"alpha:WIDGET": 0.45})
	opps, err := s.Candidates(context.Background())
	require.NoError(t, err)
	require.Empty(t, opps)
}
