package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crossarb/paperbot/internal/domain"
)

// maxWindow bounds retention; entries older than the largest enforced window
// are pruned on every read.
const maxWindow = 24 * time.Hour

// TradeCounter implements domain.TradeCounter on a Redis sorted set scored by
// timestamp, so several engine instances can share one set of rate ceilings.
// Errors propagate to the gate, which fails closed on them.
type TradeCounter struct {
	rdb *redis.Client
	key string
}

// NewTradeCounter creates a TradeCounter backed by the given Client.
func NewTradeCounter(c *Client) *TradeCounter {
	return &TradeCounter{
		rdb: c.Underlying(),
		key: "paperbot:trades",
	}
}

// Record registers one admitted trade attempt at the current time.
func (tc *TradeCounter) Record(ctx context.Context) error {
	now := time.Now()
	pipe := tc.rdb.TxPipeline()
	pipe.ZAdd(ctx, tc.key, redis.Z{
		Score:  float64(now.UnixMicro()),
		Member: uuid.New().String(),
	})
	pipe.Expire(ctx, tc.key, maxWindow+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: record trade: %w", err)
	}
	return nil
}

// CountSince returns how many trades were recorded within the window ending
// now, pruning entries that have aged past the retention bound.
func (tc *TradeCounter) CountSince(ctx context.Context, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-window).UnixMicro()
	prune := now.Add(-maxWindow).UnixMicro()

	pipe := tc.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, tc.key, "-inf", strconv.FormatInt(prune, 10))
	count := pipe.ZCount(ctx, tc.key, strconv.FormatInt(cutoff, 10), "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: count trades: %w", err)
	}
	return int(count.Val()), nil
}

// Compile-time interface check.
var _ domain.TradeCounter = (*TradeCounter)(nil)
