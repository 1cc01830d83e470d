package paper

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossarb/paperbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func testLeg(action domain.LegAction) domain.ArbitrageLeg {
	return domain.ArbitrageLeg{
		Exchange: "alpha",
		Action:   action,
		MarketID: "M1",
		Price:    0.50,
		Quantity: 100,
		Order:    1,
	}
}

func TestPlaceOrderFillsAtOrWorseThanLimit(t *testing.T) {
	c := NewClient(ClientConfig{Name: "alpha", SlippageBps: 50, Seed: 1}, testLogger())

	buy, err := c.PlaceOrder(context.Background(), testLeg(domain.LegActionBuy))
	require.NoError(t, err)
	require.True(t, buy.Success)
	require.GreaterOrEqual(t, buy.FillPrice, 0.50)

	sell, err := c.PlaceOrder(context.Background(), testLeg(domain.LegActionSell))
	require.NoError(t, err)
	require.True(t, sell.Success)
	require.LessOrEqual(t, sell.FillPrice, 0.50)
}

func TestPlaceOrderRejectsWrongVenue(t *testing.T) {
	c := NewClient(ClientConfig{Name: "beta"}, testLogger())
	_, err := c.PlaceOrder(context.Background(), testLeg(domain.LegActionBuy))
	require.ErrorIs(t, err, domain.ErrUnknownVenue)
}

func TestPlaceOrderFailureInjection(t *testing.T) {
	c := NewClient(ClientConfig{Name: "alpha", FailureRate: 1.0, Seed: 1}, testLogger())
	res, err := c.PlaceOrder(context.Background(), testLeg(domain.LegActionBuy))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Message)
}

func TestDisconnectAndReconnect(t *testing.T) {
	c := NewClient(ClientConfig{Name: "alpha"}, testLogger())
	ctx := context.Background()

	c.SetConnected(false)
	_, err := c.PlaceOrder(ctx, testLeg(domain.LegActionBuy))
	require.ErrorIs(t, err, domain.ErrWSDisconnect)

	require.NoError(t, c.Reconnect(ctx))
	res, err := c.PlaceOrder(ctx, testLeg(domain.LegActionBuy))
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient(ClientConfig{Name: "alpha"}, testLogger()))
	r.Register(NewClient(ClientConfig{Name: "beta"}, testLogger()))

	p, err := r.Placer("alpha")
	require.NoError(t, err)
	require.Equal(t, "alpha", p.Name())

	_, err = r.Placer("gamma")
	require.ErrorIs(t, err, domain.ErrUnknownVenue)

	require.Equal(t, []string{"alpha", "beta"}, r.Names())
}
