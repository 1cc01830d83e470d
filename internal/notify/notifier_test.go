package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossarb/paperbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

type recordingSender struct {
	name string
	msgs []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func tradeMessage() Message {
	return Message{
		Event:  domain.ActivityTradeExecuted,
		Title:  "Trade executed",
		Body:   "opportunity abc completed",
		Fields: map[string]any{"realized_profit": 10.0, "legs_executed": 2},
	}
}

func TestNotifyFiltersByEvent(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"trade_executed"}, testLogger())

	require.NoError(t, n.Notify(context.Background(), tradeMessage()))
	require.NoError(t, n.Notify(context.Background(), Message{
		Event: domain.ActivityOpportunityFound,
		Title: "Opportunity found",
	}))

	require.Len(t, sender.msgs, 1)
	require.Equal(t, domain.ActivityTradeExecuted, sender.msgs[0].Event)
	require.Equal(t, 2, sender.msgs[0].Fields["legs_executed"])
}

func TestNotifyEmptyEventListAllowsAll(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), tradeMessage()))
	require.Len(t, sender.msgs, 1)
}

func TestAlertBypassesEventFilter(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"trade_executed"}, testLogger())

	require.NoError(t, n.Alert(context.Background(), Message{
		Event: domain.ActivityKillSwitch,
		Title: "Kill switch activated",
	}))

	require.Len(t, sender.msgs, 1)
	require.Equal(t, domain.ActivityKillSwitch, sender.msgs[0].Event)
}

func TestDispatchContinuesPastFailingSender(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("webhook down")}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, testLogger())

	err := n.Notify(context.Background(), tradeMessage())

	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
	require.Len(t, healthy.msgs, 1)
}

func TestSortedFieldKeysStableOrder(t *testing.T) {
	keys := sortedFieldKeys(map[string]any{
		"realized_profit": 10.0,
		"execution_id":    "e1",
		"legs_executed":   2,
	})
	require.Equal(t, []string{"execution_id", "legs_executed", "realized_profit"}, keys)
}
