package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyntheticPricesDeterministicForFixedSeed(t *testing.T) {
	base := map[string]float64{"M1": 0.5, "M2": 0.5}
	a := NewSyntheticPrices(base, 42)
	b := NewSyntheticPrices(base, 42)

	for i := 0; i < 5; i++ {
		pa, err := a.Prices(context.Background())
		require.NoError(t, err)
		pb, err := b.Prices(context.Background())
		require.NoError(t, err)
		require.Equal(t, pa, pb)
	}
}

func TestSyntheticPricesZeroSeedStillWalks(t *testing.T) {
	s := NewSyntheticPrices(map[string]float64{"M1": 0.5}, 0)

	p, err := s.Prices(context.Background())
	require.NoError(t, err)
	// One bounded step of at most ±2% from the base.
	require.InDelta(t, 0.5, p["M1"], 0.5*0.02+1e-9)
	require.Greater(t, p["M1"], 0.0)
}

func TestSyntheticPricesFlooredAwayFromZero(t *testing.T) {
	s := NewSyntheticPrices(map[string]float64{"M1": 0.01}, 7)

	for i := 0; i < 200; i++ {
		p, err := s.Prices(context.Background())
		require.NoError(t, err)
		require.GreaterOrEqual(t, p["M1"], 0.01)
	}
}
