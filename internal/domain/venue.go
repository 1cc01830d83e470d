package domain

import "context"

// OrderPlacer is the capability through which the executor submits one leg to
// an exchange. Implementations are per-venue; in paper mode they simulate
// fills rather than moving real capital.
type OrderPlacer interface {
	// PlaceOrder submits the leg and blocks until the venue reports an
	// outcome or the context's deadline expires. A non-success OrderResult
	// with a nil error and a returned error are both treated as leg failure.
	PlaceOrder(ctx context.Context, leg ArbitrageLeg) (OrderResult, error)
	// Name returns the venue identifier this placer serves.
	Name() string
}

// Reconnector is optionally implemented by venues that can re-establish
// connectivity after a detected gap.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// VenueRegistry resolves an exchange identifier to its order placer.
type VenueRegistry interface {
	Placer(exchange string) (OrderPlacer, error)
}
