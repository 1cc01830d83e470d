package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crossarb/paperbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Create inserts an opportunity and its legs.
func (s *OpportunityStore) Create(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO opportunities (id, kind, expected_profit, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		opp.ID, string(opp.Kind), opp.ExpectedProfit, opp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity: %w", err)
	}

	for _, leg := range opp.Legs {
		_, err = tx.Exec(ctx, `
			INSERT INTO opportunity_legs (opportunity_id, exchange, action, market_id, price, quantity, leg_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			opp.ID, leg.Exchange, string(leg.Action), leg.MarketID, leg.Price, leg.Quantity, leg.Order,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert opportunity_leg: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListRecent returns the most recent opportunities with their legs, newest
// first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, expected_profit, created_at
		FROM opportunities ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var list []domain.ArbitrageOpportunity
	index := make(map[string]int)
	for rows.Next() {
		var opp domain.ArbitrageOpportunity
		var kind string
		if err := rows.Scan(&opp.ID, &kind, &opp.ExpectedProfit, &opp.CreatedAt); err != nil {
			return nil, err
		}
		opp.Kind = domain.OpportunityKind(kind)
		index[opp.ID] = len(list)
		list = append(list, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, 0, len(list))
	for _, opp := range list {
		ids = append(ids, opp.ID)
	}
	legRows, err := s.pool.Query(ctx, `
		SELECT opportunity_id, exchange, action, market_id, price, quantity, leg_order
		FROM opportunity_legs WHERE opportunity_id = ANY($1) ORDER BY leg_order`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunity_legs: %w", err)
	}
	defer legRows.Close()
	for legRows.Next() {
		var oppID, action string
		var leg domain.ArbitrageLeg
		if err := legRows.Scan(&oppID, &leg.Exchange, &action, &leg.MarketID, &leg.Price, &leg.Quantity, &leg.Order); err != nil {
			return nil, err
		}
		leg.Action = domain.LegAction(action)
		if i, ok := index[oppID]; ok {
			list[i].Legs = append(list[i].Legs, leg)
		}
	}
	return list, legRows.Err()
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
