// Package domain defines the core types and collaborator interfaces for the
// paper-settled arbitrage engine: opportunities and their legs, execution and
// rollback results, admission-control state, and the ledger model. Concrete
// adapters (venues, persistence, history stores, caches) live in sibling
// packages and implement the interfaces declared here.
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LegAction indicates whether a leg buys or sells.
type LegAction string

const (
	LegActionBuy  LegAction = "buy"
	LegActionSell LegAction = "sell"
)

// Inverted returns the opposite action (buy↔sell).
func (a LegAction) Inverted() LegAction {
	if a == LegActionBuy {
		return LegActionSell
	}
	return LegActionBuy
}

// OpportunityKind classifies an opportunity by leg arity.
type OpportunityKind string

const (
	KindTwoWay   OpportunityKind = "two_way"   // exactly 2 legs
	KindThreeWay OpportunityKind = "three_way" // exactly 3 legs
	KindMultiLeg OpportunityKind = "multi_leg" // 4 or more legs
)

// ArbitrageLeg is one atomic order intent within a multi-step trade. Legs are
// immutable once constructed; a failed or completed attempt produces an
// ExecutionResult, never a mutation of the leg.
type ArbitrageLeg struct {
	Exchange string    `json:"exchange"`
	Action   LegAction `json:"action"`
	MarketID string    `json:"market_id"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	// Order is the 1-based execution sequence, unique within an opportunity.
	Order int `json:"order"`
}

// Cashflow returns the signed cash effect of filling this leg at the given
// price: buys cost money (negative), sells raise money (positive).
func (l ArbitrageLeg) Cashflow(fillPrice float64) float64 {
	if l.Action == LegActionBuy {
		return -fillPrice * l.Quantity
	}
	return fillPrice * l.Quantity
}

// Compensation derives the order that reverses this leg: same exchange,
// market, price, and quantity with the action inverted.
func (l ArbitrageLeg) Compensation() ArbitrageLeg {
	c := l
	c.Action = l.Action.Inverted()
	return c
}

// ArbitrageOpportunity is a candidate multi-leg trade produced by the strategy
// layer. Legs are held in ascending execution order. Opportunities are
// consumed once by the executor and never mutated after creation.
type ArbitrageOpportunity struct {
	ID             string          `json:"id"`
	Kind           OpportunityKind `json:"kind"`
	Legs           []ArbitrageLeg  `json:"legs"`
	ExpectedProfit float64         `json:"expected_profit"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewOpportunity constructs a validated opportunity. It fails with an error
// wrapping ErrInvalidOpportunity when the leg count does not match the kind,
// when leg order values are not a unique contiguous 1..N sequence, or when any
// leg has a non-positive price or quantity. Legs are stored sorted by order.
func NewOpportunity(kind OpportunityKind, legs []ArbitrageLeg, expectedProfit float64) (ArbitrageOpportunity, error) {
	sorted := make([]ArbitrageLeg, len(legs))
	copy(sorted, legs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	opp := ArbitrageOpportunity{
		ID:             uuid.New().String(),
		Kind:           kind,
		Legs:           sorted,
		ExpectedProfit: expectedProfit,
		CreatedAt:      time.Now().UTC(),
	}
	if err := opp.Validate(); err != nil {
		return ArbitrageOpportunity{}, err
	}
	return opp, nil
}

// Validate re-checks the structural invariants enforced by NewOpportunity,
// including that the legs slice itself is stored in ascending execution order
// 1..N. The executor iterates the slice as-is, so slice position and Order
// must agree; a hand-built value with legs out of order is rejected here
// rather than executed in the wrong sequence.
func (o ArbitrageOpportunity) Validate() error {
	switch o.Kind {
	case KindTwoWay:
		if len(o.Legs) != 2 {
			return fmt.Errorf("%w: kind %s requires exactly 2 legs, got %d", ErrInvalidOpportunity, o.Kind, len(o.Legs))
		}
	case KindThreeWay:
		if len(o.Legs) != 3 {
			return fmt.Errorf("%w: kind %s requires exactly 3 legs, got %d", ErrInvalidOpportunity, o.Kind, len(o.Legs))
		}
	case KindMultiLeg:
		if len(o.Legs) < 4 {
			return fmt.Errorf("%w: kind %s requires at least 4 legs, got %d", ErrInvalidOpportunity, o.Kind, len(o.Legs))
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOpportunity, o.Kind)
	}

	for i, leg := range o.Legs {
		if leg.Price <= 0 {
			return fmt.Errorf("%w: leg %d has non-positive price %v", ErrInvalidOpportunity, leg.Order, leg.Price)
		}
		if leg.Quantity <= 0 {
			return fmt.Errorf("%w: leg %d has non-positive quantity %v", ErrInvalidOpportunity, leg.Order, leg.Quantity)
		}
		// Subsumes the range, uniqueness, and contiguity checks: position
		// and order agreeing for every leg forces a sorted 1..N sequence.
		if leg.Order != i+1 {
			return fmt.Errorf("%w: leg at position %d has order %d, legs must be stored ascending 1..%d", ErrInvalidOpportunity, i, leg.Order, len(o.Legs))
		}
	}
	return nil
}

// KindForLegCount returns the opportunity kind implied by a leg count, or an
// error when the count cannot form a valid opportunity.
func KindForLegCount(n int) (OpportunityKind, error) {
	switch {
	case n == 2:
		return KindTwoWay, nil
	case n == 3:
		return KindThreeWay, nil
	case n >= 4:
		return KindMultiLeg, nil
	default:
		return "", fmt.Errorf("%w: %d legs cannot form an opportunity", ErrInvalidOpportunity, n)
	}
}
