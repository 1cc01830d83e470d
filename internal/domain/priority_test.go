package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortPreferredFirst(t *testing.T) {
	legs := []ArbitrageLeg{
		leg("beta", LegActionSell, "M2", 0.55, 100, 1),
		leg("alpha", LegActionBuy, "M1", 0.45, 100, 2),
		leg("gamma", LegActionBuy, "M3", 0.30, 50, 3),
	}

	sorted := SortPreferredFirst(legs, "alpha")
	require.Equal(t, "alpha", sorted[0].Exchange)
	require.Equal(t, 1, sorted[0].Order)
	// Relative order of the non-preferred legs is preserved.
	require.Equal(t, "beta", sorted[1].Exchange)
	require.Equal(t, 2, sorted[1].Order)
	require.Equal(t, "gamma", sorted[2].Exchange)
	require.Equal(t, 3, sorted[2].Order)
}

func TestSortPreferredFirstIdempotent(t *testing.T) {
	legs := []ArbitrageLeg{
		leg("beta", LegActionSell, "M2", 0.55, 100, 1),
		leg("alpha", LegActionBuy, "M1", 0.45, 100, 2),
	}
	once := SortPreferredFirst(legs, "alpha")
	twice := SortPreferredFirst(once, "alpha")
	require.Equal(t, once, twice)
}

func TestSortPreferredFirstLowestOrderWins(t *testing.T) {
	legs := []ArbitrageLeg{
		leg("beta", LegActionSell, "M2", 0.55, 100, 1),
		leg("alpha", LegActionBuy, "M1", 0.45, 100, 2),
		leg("alpha", LegActionSell, "M4", 0.60, 20, 3),
	}
	sorted := SortPreferredFirst(legs, "alpha")
	require.Equal(t, "alpha", sorted[0].Exchange)
	require.Equal(t, "M1", sorted[0].MarketID)
	require.Equal(t, "M2", sorted[1].MarketID)
	require.Equal(t, "M4", sorted[2].MarketID)
}

func TestSortPreferredFirstNoMatch(t *testing.T) {
	legs := []ArbitrageLeg{
		leg("beta", LegActionSell, "M2", 0.55, 100, 1),
		leg("gamma", LegActionBuy, "M1", 0.45, 100, 2),
	}
	sorted := SortPreferredFirst(legs, "alpha")
	require.Equal(t, "beta", sorted[0].Exchange)
	require.Equal(t, "gamma", sorted[1].Exchange)
}

func TestValidatePreferredFirst(t *testing.T) {
	mk := func(legs ...ArbitrageLeg) ArbitrageOpportunity {
		kind, err := KindForLegCount(len(legs))
		require.NoError(t, err)
		opp, err := NewOpportunity(kind, legs, 1.0)
		require.NoError(t, err)
		return opp
	}

	t.Run("no preferred leg is valid", func(t *testing.T) {
		opp := mk(
			leg("beta", LegActionSell, "M2", 0.55, 100, 1),
			leg("gamma", LegActionBuy, "M1", 0.45, 100, 2),
		)
		require.True(t, ValidatePreferredFirst(opp, "alpha"))
	})

	t.Run("preferred leg first is valid", func(t *testing.T) {
		opp := mk(
			leg("alpha", LegActionBuy, "M1", 0.45, 100, 1),
			leg("beta", LegActionSell, "M2", 0.55, 100, 2),
		)
		require.True(t, ValidatePreferredFirst(opp, "alpha"))
	})

	t.Run("preferred leg not first is invalid", func(t *testing.T) {
		opp := mk(
			leg("beta", LegActionSell, "M2", 0.55, 100, 1),
			leg("alpha", LegActionBuy, "M1", 0.45, 100, 2),
		)
		require.False(t, ValidatePreferredFirst(opp, "alpha"))
	})

	t.Run("empty preferred venue is always valid", func(t *testing.T) {
		opp := mk(
			leg("beta", LegActionSell, "M2", 0.55, 100, 1),
			leg("alpha", LegActionBuy, "M1", 0.45, 100, 2),
		)
		require.True(t, ValidatePreferredFirst(opp, ""))
	})
}
