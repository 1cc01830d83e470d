package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crossarb/paperbot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Create inserts an execution result with its filled legs and any rollback
// details.
func (s *ExecutionStore) Create(ctx context.Context, res domain.ExecutionResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var errMsg *string
	if msg := res.ErrorMessage(); msg != "" {
		errMsg = &msg
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, opportunity_id, attempted, success, legs_executed, legs_failed, realized_profit, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.ID, res.OpportunityID, res.Attempted, res.Success,
		res.LegsExecuted, res.LegsFailed, res.RealizedProfit, errMsg,
		res.StartedAt, res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}

	for _, executed := range res.ExecutedLegs {
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_legs (execution_id, exchange, action, market_id, limit_price, fill_price, quantity, leg_order, filled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			res.ID, executed.Leg.Exchange, string(executed.Leg.Action), executed.Leg.MarketID,
			executed.Leg.Price, executed.FillPrice, executed.Leg.Quantity, executed.Leg.Order, executed.FilledAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution_leg: %w", err)
		}
	}

	if res.Rollback != nil {
		for _, detail := range res.Rollback.Details {
			var fill *float64
			if detail.FillPrice > 0 {
				f := detail.FillPrice
				fill = &f
			}
			var rbErr *string
			if detail.Error != "" {
				e := detail.Error
				rbErr = &e
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO rollback_legs (execution_id, exchange, action, market_id, quantity, success, fill_price, error)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				res.ID, detail.Compensation.Exchange, string(detail.Compensation.Action),
				detail.Compensation.MarketID, detail.Compensation.Quantity,
				detail.Success, fill, rbErr,
			)
			if err != nil {
				return fmt.Errorf("postgres: insert rollback_leg: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// ListRecent returns the most recent executions, newest first, without their
// leg detail rows.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, opportunity_id, attempted, success, legs_executed, legs_failed, realized_profit, error, started_at, completed_at
		FROM executions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []domain.ExecutionResult
	for rows.Next() {
		var res domain.ExecutionResult
		var errMsg *string
		if err := rows.Scan(&res.ID, &res.OpportunityID, &res.Attempted, &res.Success,
			&res.LegsExecuted, &res.LegsFailed, &res.RealizedProfit, &errMsg,
			&res.StartedAt, &res.CompletedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			res.Err = errors.New(*errMsg)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

// SumProfit returns the total realized profit of executions since the given
// time.
func (s *ExecutionStore) SumProfit(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(realized_profit), 0) FROM executions WHERE started_at >= $1`,
		since,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum execution profit: %w", err)
	}
	return sum, nil
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
