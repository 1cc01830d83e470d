// Package gate implements the single admission checkpoint consulted before
// any trade may proceed in a cycle. It evaluates, in short-circuit order, the
// operator kill switch, the pause flag, and rolling trade-rate ceilings, and
// fails closed when the durable control state cannot be read in time.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// Config holds the rate-limit ceilings.
type Config struct {
	MaxTradesPerHour int
	MaxTradesPerDay  int
}

// Gate computes admission decisions from the durable control state and a
// trade counter. One decision is computed per scheduling cycle and threaded
// through every execution in that cycle; control state cannot change
// mid-cycle in the single-threaded scheduler.
type Gate struct {
	cfg     Config
	control domain.ControlStore
	counter domain.TradeCounter
	logger  *slog.Logger
}

// New creates a Gate. counter may be an in-memory window or a shared Redis
// window; both satisfy domain.TradeCounter.
func New(cfg Config, control domain.ControlStore, counter domain.TradeCounter, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		control: control,
		counter: counter,
		logger:  logger.With(slog.String("component", "gate")),
	}
}

// Decide returns a fresh admission verdict. Checks short-circuit in priority
// order: kill switch, pause, rate ceilings. Any failure to read control state
// or counters denies with control_unavailable rather than defaulting to allow.
func (g *Gate) Decide(ctx context.Context) domain.GateDecision {
	now := time.Now().UTC()

	state, err := g.control.Load(ctx)
	if err != nil {
		g.logger.Warn("control state unavailable, failing closed",
			slog.String("error", err.Error()),
		)
		return deny(domain.DenyReasonControlUnavailable, now)
	}

	if state.KillSwitch {
		g.logger.Warn("kill switch active", slog.String("reason", state.Reason))
		return deny(domain.DenyReasonKillSwitchActive, now)
	}
	if state.Paused {
		g.logger.Info("trading paused", slog.String("reason", state.Reason))
		return deny(domain.DenyReasonPaused, now)
	}

	if g.cfg.MaxTradesPerHour > 0 {
		n, err := g.counter.CountSince(ctx, time.Hour)
		if err != nil {
			g.logger.Warn("hourly counter unavailable, failing closed",
				slog.String("error", err.Error()),
			)
			return deny(domain.DenyReasonControlUnavailable, now)
		}
		if n >= g.cfg.MaxTradesPerHour {
			g.logger.Info("hourly trade ceiling reached",
				slog.Int("count", n),
				slog.Int("ceiling", g.cfg.MaxTradesPerHour),
			)
			return deny(domain.DenyReasonRateLimited, now)
		}
	}
	if g.cfg.MaxTradesPerDay > 0 {
		n, err := g.counter.CountSince(ctx, 24*time.Hour)
		if err != nil {
			g.logger.Warn("daily counter unavailable, failing closed",
				slog.String("error", err.Error()),
			)
			return deny(domain.DenyReasonControlUnavailable, now)
		}
		if n >= g.cfg.MaxTradesPerDay {
			g.logger.Info("daily trade ceiling reached",
				slog.Int("count", n),
				slog.Int("ceiling", g.cfg.MaxTradesPerDay),
			)
			return deny(domain.DenyReasonRateLimited, now)
		}
	}

	return domain.GateDecision{Allowed: true, Reason: domain.DenyReasonNone, CheckedAt: now}
}

// RecordTrade consumes one unit of the rolling ceilings. It is called only
// for admitted execution attempts; rejected opportunities cost nothing.
func (g *Gate) RecordTrade(ctx context.Context) {
	if err := g.counter.Record(ctx); err != nil {
		g.logger.Warn("trade counter record failed", slog.String("error", err.Error()))
	}
}

func deny(reason domain.DenyReason, at time.Time) domain.GateDecision {
	return domain.GateDecision{Allowed: false, Reason: reason, CheckedAt: at}
}
