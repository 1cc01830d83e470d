// Package executor runs admitted opportunities leg by leg against the venue
// collaborators and detects partial failure. Legs execute strictly in
// ascending order; the first failure halts the attempt and synchronously
// hands the already-executed legs to the rollback handler.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crossarb/paperbot/internal/domain"
)

// defaultOrderTimeout bounds each venue order-placement call.
const defaultOrderTimeout = 30 * time.Second

// Executor executes opportunities sequentially through per-venue order
// placers. It never runs legs in parallel and never cancels an in-flight
// placement; an invoked call is awaited until its result or its bounded
// timeout.
type Executor struct {
	venues         domain.VenueRegistry
	rollbacker     *Rollbacker
	preferredVenue string
	orderTimeout   time.Duration
	logger         *slog.Logger
}

// New creates an Executor placing orders through the given venue registry and
// compensating failures through its own rollback handler. preferredVenue is
// the venue whose leg, if present, must be ordered first.
func New(venues domain.VenueRegistry, preferredVenue string, logger *slog.Logger) *Executor {
	return &Executor{
		venues:         venues,
		rollbacker:     NewRollbacker(venues, logger),
		preferredVenue: preferredVenue,
		orderTimeout:   defaultOrderTimeout,
		logger:         logger.With(slog.String("component", "executor")),
	}
}

// SetOrderTimeout overrides the per-leg placement timeout. Must be called
// before Execute.
func (e *Executor) SetOrderTimeout(d time.Duration) {
	if d > 0 {
		e.orderTimeout = d
	}
}

// Execute runs one attempt for the opportunity under the cycle's admission
// decision. Preconditions are re-checked here so nothing can bypass them: an
// invalid or mis-ordered opportunity, or a denying decision, yields a
// not-attempted result with zero legs run, no rollback, and no rate-limit
// cost. On a leg failure the attempt stops immediately and the rollback
// handler compensates exactly the legs executed so far.
func (e *Executor) Execute(ctx context.Context, opp domain.ArbitrageOpportunity, decision domain.GateDecision) domain.ExecutionResult {
	res := domain.ExecutionResult{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		StartedAt:     time.Now().UTC(),
	}

	if err := opp.Validate(); err != nil {
		res.Err = err
		res.CompletedAt = time.Now().UTC()
		return res
	}
	if !domain.ValidatePreferredFirst(opp, e.preferredVenue) {
		res.Err = fmt.Errorf("%w: preferred venue %s leg is not first", domain.ErrInvalidOpportunity, e.preferredVenue)
		res.CompletedAt = time.Now().UTC()
		return res
	}
	if !decision.Allowed {
		res.Err = fmt.Errorf("%w: %s", domain.ErrGateDenied, decision.Reason)
		res.CompletedAt = time.Now().UTC()
		return res
	}

	res.Attempted = true
	log := e.logger.With(
		slog.String("opportunity_id", opp.ID),
		slog.String("kind", string(opp.Kind)),
		slog.Int("legs", len(opp.Legs)),
	)
	log.Info("executing opportunity",
		slog.Float64("expected_profit", opp.ExpectedProfit),
	)

	for _, leg := range opp.Legs {
		executed, err := e.placeLeg(ctx, leg)
		if err != nil {
			log.Error("leg failed, halting",
				slog.Int("leg_order", leg.Order),
				slog.String("exchange", leg.Exchange),
				slog.String("error", err.Error()),
			)
			res.LegsFailed = 1
			res.Err = fmt.Errorf("executor: leg %d on %s: %w", leg.Order, leg.Exchange, err)

			if len(res.ExecutedLegs) > 0 {
				rb := e.rollbacker.Rollback(ctx, res.ExecutedLegs)
				res.Rollback = &rb
			}
			res.CompletedAt = time.Now().UTC()
			return res
		}

		res.ExecutedLegs = append(res.ExecutedLegs, executed)
		res.LegsExecuted++
		log.Debug("leg filled",
			slog.Int("leg_order", leg.Order),
			slog.String("exchange", leg.Exchange),
			slog.Float64("fill_price", executed.FillPrice),
		)
	}

	res.Success = true
	for _, executed := range res.ExecutedLegs {
		res.RealizedProfit += executed.Leg.Cashflow(executed.FillPrice)
	}
	res.CompletedAt = time.Now().UTC()
	log.Info("opportunity executed",
		slog.Float64("realized_profit", res.RealizedProfit),
	)
	return res
}

// placeLeg submits one leg to its venue with a bounded timeout. A venue error
// and an explicit non-success outcome are both leg failures.
func (e *Executor) placeLeg(ctx context.Context, leg domain.ArbitrageLeg) (domain.ExecutedLeg, error) {
	placer, err := e.venues.Placer(leg.Exchange)
	if err != nil {
		return domain.ExecutedLeg{}, err
	}

	legCtx, cancel := context.WithTimeout(ctx, e.orderTimeout)
	defer cancel()

	result, err := placer.PlaceOrder(legCtx, leg)
	if err != nil {
		return domain.ExecutedLeg{}, err
	}
	if !result.Success {
		return domain.ExecutedLeg{}, fmt.Errorf("executor: venue rejected order: %s", result.Message)
	}

	fill := result.FillPrice
	if fill <= 0 {
		fill = leg.Price
	}
	return domain.ExecutedLeg{
		Leg:       leg,
		FillPrice: fill,
		FilledAt:  time.Now().UTC(),
	}, nil
}
