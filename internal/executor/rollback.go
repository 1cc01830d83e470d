package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// Rollbacker issues best-effort compensating orders for already-executed legs
// after a later leg fails. Compensation is not transactional: a failed
// compensating order is recorded and skipped, never retried or escalated, so
// a broken venue cannot cascade into a second failure path.
type Rollbacker struct {
	venues       domain.VenueRegistry
	orderTimeout time.Duration
	logger       *slog.Logger
}

// NewRollbacker creates a rollback handler placing compensating orders
// through the given venue registry.
func NewRollbacker(venues domain.VenueRegistry, logger *slog.Logger) *Rollbacker {
	return &Rollbacker{
		venues:       venues,
		orderTimeout: defaultOrderTimeout,
		logger:       logger.With(slog.String("component", "rollback")),
	}
}

// Rollback compensates the given legs in reverse of their actual execution
// order: the most recently executed leg is unwound first, since reversing the
// order on chained trades can grow net exposure instead of shrinking it. Every
// attempt, success or failure, is captured in the result; Rollback itself
// never fails.
func (r *Rollbacker) Rollback(ctx context.Context, executed []domain.ExecutedLeg) domain.RollbackResult {
	res := domain.RollbackResult{
		TotalLegs: len(executed),
		Details:   make([]domain.RollbackDetail, 0, len(executed)),
	}

	r.logger.Warn("rolling back executed legs", slog.Int("legs", len(executed)))

	for i := len(executed) - 1; i >= 0; i-- {
		leg := executed[i].Leg
		comp := leg.Compensation()
		detail := domain.RollbackDetail{Leg: leg, Compensation: comp}

		outcome, err := r.placeCompensation(ctx, comp)
		switch {
		case err != nil:
			detail.Error = err.Error()
		case !outcome.Success:
			detail.Error = outcome.Message
		default:
			detail.Success = true
			detail.FillPrice = outcome.FillPrice
			if detail.FillPrice <= 0 {
				detail.FillPrice = comp.Price
			}
		}

		if detail.Success {
			res.SuccessfulRollbacks++
			r.logger.Info("leg compensated",
				slog.Int("leg_order", leg.Order),
				slog.String("exchange", leg.Exchange),
				slog.String("action", string(comp.Action)),
			)
		} else {
			res.FailedRollbacks++
			r.logger.Error("compensation failed, continuing",
				slog.Int("leg_order", leg.Order),
				slog.String("exchange", leg.Exchange),
				slog.String("error", detail.Error),
			)
		}
		res.Details = append(res.Details, detail)
	}

	return res
}

func (r *Rollbacker) placeCompensation(ctx context.Context, comp domain.ArbitrageLeg) (domain.OrderResult, error) {
	placer, err := r.venues.Placer(comp.Exchange)
	if err != nil {
		return domain.OrderResult{}, err
	}

	compCtx, cancel := context.WithTimeout(ctx, r.orderTimeout)
	defer cancel()

	return placer.PlaceOrder(compCtx, comp)
}
