// Package paper implements simulated exchange clients. Each client fills
// orders against configurable slippage, latency, and failure parameters so
// the execution core exercises the same partial-failure paths it would see
// against real venues, without moving capital.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// ClientConfig holds the simulation parameters for one venue.
type ClientConfig struct {
	// Name is the venue identifier legs address.
	Name string
	// FillLatency is the simulated round-trip before a fill is reported.
	FillLatency time.Duration
	// SlippageBps shifts fills against the order by up to this many basis
	// points, uniformly drawn.
	SlippageBps float64
	// FailureRate is the probability in [0,1] that an order is rejected.
	FailureRate float64
	// Seed makes the simulation reproducible; zero seeds from the clock.
	Seed int64
}

// Client is a simulated venue implementing domain.OrderPlacer and
// domain.Reconnector.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	connected bool
}

// NewClient creates a paper venue client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Client{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "paper_venue"), slog.String("venue", cfg.Name)),
		rng:       rand.New(rand.NewSource(seed)),
		connected: true,
	}
}

// Name returns the venue identifier.
func (c *Client) Name() string { return c.cfg.Name }

// PlaceOrder simulates submitting a leg: waits out the configured latency
// (honouring the context deadline), then reports a fill with bounded slippage
// or a rejection per the failure rate.
func (c *Client) PlaceOrder(ctx context.Context, leg domain.ArbitrageLeg) (domain.OrderResult, error) {
	if leg.Exchange != c.cfg.Name {
		return domain.OrderResult{}, fmt.Errorf("paper: leg for %s sent to %s: %w", leg.Exchange, c.cfg.Name, domain.ErrUnknownVenue)
	}

	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return domain.OrderResult{}, fmt.Errorf("paper: %s: %w", c.cfg.Name, domain.ErrWSDisconnect)
	}

	if c.cfg.FillLatency > 0 {
		timer := time.NewTimer(c.cfg.FillLatency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.OrderResult{}, fmt.Errorf("paper: %s place order: %w", c.cfg.Name, ctx.Err())
		case <-timer.C:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.FailureRate > 0 && c.rng.Float64() < c.cfg.FailureRate {
		c.logger.Debug("simulated rejection",
			slog.String("market", leg.MarketID),
			slog.String("action", string(leg.Action)),
		)
		return domain.OrderResult{Success: false, Message: "simulated venue rejection"}, nil
	}

	fill := leg.Price
	if c.cfg.SlippageBps > 0 {
		// Slippage always moves against the order.
		slip := leg.Price * c.rng.Float64() * c.cfg.SlippageBps / 10000
		if leg.Action == domain.LegActionBuy {
			fill += slip
		} else {
			fill -= slip
		}
		if fill <= 0 {
			fill = leg.Price
		}
	}

	return domain.OrderResult{Success: true, FillPrice: fill}, nil
}

// Reconnect restores a client after SetConnected(false), simulating recovery
// from a connectivity gap.
func (c *Client) Reconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.logger.Info("reconnected")
	return nil
}

// SetConnected toggles the simulated link, for failure-injection in tests
// and chaos runs.
func (c *Client) SetConnected(up bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = up
}

var (
	_ domain.OrderPlacer = (*Client)(nil)
	_ domain.Reconnector = (*Client)(nil)
)
