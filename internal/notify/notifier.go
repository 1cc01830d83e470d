// Package notify fans trading events out to operator channels. A Message
// carries the activity event it reports plus the structured context fields
// recorded with it; each channel renders those in its own format (Telegram
// markdown, Discord embeds). Delivery is best-effort: a failing channel is
// logged and never blocks the cycle that produced the event.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/crossarb/paperbot/internal/domain"
)

// Message is one operator notification.
type Message struct {
	// Event is the activity event this notification reports. The notifier
	// filters on it; channels use it to pick rendering (e.g. embed colour).
	Event domain.ActivityType
	Title string
	Body  string
	// Fields carry the execution context recorded with the event: ids, leg
	// counts, realized profit, rollback tallies.
	Fields map[string]any
}

// Sender delivers a Message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name identifies the channel (e.g. "telegram") in logs and errors.
	Name() string
}

// Notifier dispatches messages to one or more Senders, filtered by event so
// operators receive only the alerts they care about.
type Notifier struct {
	senders []Sender
	events  map[domain.ActivityType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// messages whose event appears in events are forwarded by Notify; an empty
// list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.ActivityType]bool, len(events))
	for _, e := range events {
		allowed[domain.ActivityType(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards msg to every sender when its event is in the allowed set.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if len(n.events) > 0 && !n.events[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", string(msg.Event)),
		)
		return nil
	}
	return n.dispatch(ctx, msg)
}

// Alert forwards msg regardless of the event filter. Operator-initiated
// actions (the kill switch) always notify.
func (n *Notifier) Alert(ctx context.Context, msg Message) error {
	return n.dispatch(ctx, msg)
}

// dispatch sends to every sender. Per-sender failures are collected into a
// combined error; one channel failing does not stop delivery to the rest.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(msg.Event)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", msg.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// sortedFieldKeys returns the field names in sorted order so channel output
// is stable across runs.
func sortedFieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
