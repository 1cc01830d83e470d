package paper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/crossarb/paperbot/internal/domain"
)

// Registry resolves venue identifiers to their order placers. It implements
// domain.VenueRegistry.
type Registry struct {
	mu      sync.RWMutex
	placers map[string]domain.OrderPlacer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{placers: make(map[string]domain.OrderPlacer)}
}

// Register adds or replaces the placer for its venue name.
func (r *Registry) Register(p domain.OrderPlacer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placers[p.Name()] = p
}

// Placer returns the placer for the exchange, or domain.ErrUnknownVenue.
func (r *Registry) Placer(exchange string) (domain.OrderPlacer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.placers[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVenue, exchange)
	}
	return p, nil
}

// Names returns the registered venue names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.placers))
	for name := range r.placers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ domain.VenueRegistry = (*Registry)(nil)
