package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// SyntheticPrices is the fallback price source used when the live feed is
// unavailable. It random-walks each market around a base price so downstream
// valuation and candidate generation keep exercising realistic paths.
type SyntheticPrices struct {
	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

// NewSyntheticPrices seeds a synthetic source with base prices per market. A
// fixed seed makes the walk reproducible; zero seeds from the clock.
func NewSyntheticPrices(base map[string]float64, seed int64) *SyntheticPrices {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	prices := make(map[string]float64, len(base))
	for k, v := range base {
		prices[k] = v
	}
	return &SyntheticPrices{
		prices: prices,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Prices advances the walk one step and returns the new snapshot.
func (s *SyntheticPrices) Prices(context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64, len(s.prices))
	for k, v := range s.prices {
		// Bounded step of up to ±2%, floored away from zero.
		next := v * (1 + (s.rng.Float64()-0.5)*0.04)
		if next < 0.01 {
			next = 0.01
		}
		s.prices[k] = next
		out[k] = next
	}
	return out, nil
}

var _ domain.PriceSource = (*SyntheticPrices)(nil)
