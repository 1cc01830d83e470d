// Package engine drives the execute-and-recover cycle: fetch candidates,
// validate, gate once, execute, settle into the paper ledger, persist, and
// record activity. One cycle runs to completion (including any rollback)
// before the next begins; there is no parallel leg execution.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
	"github.com/crossarb/paperbot/internal/executor"
	"github.com/crossarb/paperbot/internal/gate"
	"github.com/crossarb/paperbot/internal/ledger"
	"github.com/crossarb/paperbot/internal/notify"
)

// Config holds cycle scheduling parameters.
type Config struct {
	// Interval is the tick period between cycles.
	Interval time.Duration
	// SoftBudget is the cycle duration above which an overrun is logged.
	// In-flight work is never cancelled; only the duration is recorded.
	SoftBudget time.Duration
	// PreferredVenue is the venue whose leg, when present, must run first.
	PreferredVenue string
}

// Notifier is the subset of the notification system the engine uses.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Engine is the cycle driver. All mutation of the ledger and all persistence
// happens here, on a single goroutine.
type Engine struct {
	cfg        Config
	source     domain.OpportunitySource
	sourceProv domain.Provenance
	fallback   domain.OpportunitySource
	prices     domain.PriceSource
	gate       *gate.Gate
	exec       *executor.Executor
	ledger     *ledger.Ledger
	ledgerSt   domain.LedgerStore
	activity   domain.ActivitySink
	histExec   domain.ExecutionStore
	histOpp    domain.OpportunityStore
	notifier   Notifier
	logger     *slog.Logger

	mu            sync.RWMutex
	provenance    domain.Provenance
	lastCycleTook time.Duration
	lastDecision  domain.GateDecision
}

// Options carries the engine's collaborators. Source, Prices, Gate, Executor,
// Ledger, LedgerStore, and Activity are required; the rest are optional.
type Options struct {
	Source domain.OpportunitySource
	// SourceProvenance is what data Source runs on. A synthetic-only
	// deployment passes ProvenanceSynthetic so the health surface never
	// claims live data. Empty defaults to live.
	SourceProvenance domain.Provenance
	Fallback         domain.OpportunitySource
	Prices           domain.PriceSource
	Gate             *gate.Gate
	Executor         *executor.Executor
	Ledger           *ledger.Ledger
	LedgerStore      domain.LedgerStore
	Activity         domain.ActivitySink
	// ExecutionHistory and OpportunityHistory are long-term stores; the
	// engine runs fully without them.
	ExecutionHistory   domain.ExecutionStore
	OpportunityHistory domain.OpportunityStore
	Notifier           Notifier
}

// New creates the cycle driver.
func New(cfg Config, opts Options, logger *slog.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.SoftBudget <= 0 {
		cfg.SoftBudget = cfg.Interval
	}
	if opts.SourceProvenance == "" {
		opts.SourceProvenance = domain.ProvenanceLive
	}
	return &Engine{
		cfg:        cfg,
		source:     opts.Source,
		sourceProv: opts.SourceProvenance,
		fallback:   opts.Fallback,
		prices:     opts.Prices,
		gate:       opts.Gate,
		exec:       opts.Executor,
		ledger:     opts.Ledger,
		ledgerSt:   opts.LedgerStore,
		activity:   opts.Activity,
		histExec:   opts.ExecutionHistory,
		histOpp:    opts.OpportunityHistory,
		notifier:   opts.Notifier,
		logger:     logger.With(slog.String("component", "engine")),
		provenance: opts.SourceProvenance,
	}
}

// Run ticks cycles until the context is cancelled. A long cycle delays the
// next tick rather than overlapping it.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started",
		slog.Duration("interval", e.cfg.Interval),
		slog.String("preferred_venue", e.cfg.PreferredVenue),
	)
	defer e.logger.Info("engine stopped")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final snapshot so a restart resumes from the latest state.
			e.persistLedger(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle performs one full iteration. Exported for tests and for one-shot
// invocations.
func (e *Engine) RunCycle(ctx context.Context) {
	start := time.Now()

	candidates := e.fetchCandidates(ctx)
	valid := e.validate(candidates)

	// One admission decision per cycle, threaded through every execution.
	decision := e.gate.Decide(ctx)
	e.mu.Lock()
	e.lastDecision = decision
	e.mu.Unlock()

	if !decision.Allowed && len(valid) > 0 {
		e.logger.Info("cycle denied by gate",
			slog.String("reason", string(decision.Reason)),
			slog.Int("candidates", len(valid)),
		)
		e.recordActivity(ctx, domain.ActivityAlertTriggered, map[string]any{
			"alert":  "admission_denied",
			"reason": string(decision.Reason),
		})
	}

	for _, opp := range valid {
		e.recordActivity(ctx, domain.ActivityOpportunityFound, map[string]any{
			"opportunity_id":  opp.ID,
			"kind":            string(opp.Kind),
			"legs":            len(opp.Legs),
			"expected_profit": opp.ExpectedProfit,
		})
		if e.histOpp != nil {
			if err := e.histOpp.Create(ctx, opp); err != nil {
				e.logger.Warn("opportunity history write failed", slog.String("error", err.Error()))
			}
		}
		if !decision.Allowed {
			continue
		}

		res := e.exec.Execute(ctx, opp, decision)
		if res.Attempted {
			e.gate.RecordTrade(ctx)
		}
		e.settle(ctx, res)
	}

	e.persistLedger(ctx)

	took := time.Since(start)
	e.mu.Lock()
	e.lastCycleTook = took
	e.mu.Unlock()
	if took > e.cfg.SoftBudget {
		e.logger.Warn("cycle exceeded soft budget",
			slog.Duration("took", took),
			slog.Duration("budget", e.cfg.SoftBudget),
		)
	}
}

// fetchCandidates asks the primary source first and substitutes synthetic
// candidates, tagging provenance, when it is unavailable. A successful fetch
// is tagged with the primary source's own provenance: a synthetic-only
// deployment never reports live data.
func (e *Engine) fetchCandidates(ctx context.Context) []domain.ArbitrageOpportunity {
	candidates, err := e.source.Candidates(ctx)
	if err == nil {
		e.setProvenance(e.sourceProv)
		return candidates
	}

	e.logger.Warn("primary source unavailable, using synthetic data",
		slog.String("error", err.Error()),
	)
	e.setProvenance(domain.ProvenanceSynthetic)
	if e.fallback == nil {
		return nil
	}
	candidates, err = e.fallback.Candidates(ctx)
	if err != nil {
		e.logger.Error("synthetic source failed", slog.String("error", err.Error()))
		return nil
	}
	return candidates
}

// validate drops structurally invalid or mis-ordered candidates before the
// gate is consulted, at zero cost to rate limits.
func (e *Engine) validate(candidates []domain.ArbitrageOpportunity) []domain.ArbitrageOpportunity {
	valid := candidates[:0]
	for _, opp := range candidates {
		if err := opp.Validate(); err != nil {
			e.logger.Warn("rejecting invalid candidate",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !domain.ValidatePreferredFirst(opp, e.cfg.PreferredVenue) {
			e.logger.Warn("rejecting candidate violating venue priority",
				slog.String("opportunity_id", opp.ID),
			)
			continue
		}
		valid = append(valid, opp)
	}
	return valid
}

// settle applies one execution result to the ledger, history, activity log,
// and notifications.
func (e *Engine) settle(ctx context.Context, res domain.ExecutionResult) {
	e.ledger.Apply(res)

	fields := map[string]any{
		"execution_id":    res.ID,
		"opportunity_id":  res.OpportunityID,
		"success":         res.Success,
		"legs_executed":   res.LegsExecuted,
		"legs_failed":     res.LegsFailed,
		"realized_profit": res.RealizedProfit,
	}
	if res.Rollback != nil {
		fields["rollback_total"] = res.Rollback.TotalLegs
		fields["rollback_failed"] = res.Rollback.FailedRollbacks
	}
	e.recordActivity(ctx, domain.ActivityTradeExecuted, fields)

	if e.histExec != nil {
		if err := e.histExec.Create(ctx, res); err != nil {
			e.logger.Warn("execution history write failed", slog.String("error", err.Error()))
		}
	}

	if e.notifier == nil {
		return
	}
	// The notification carries the same context fields as the activity
	// record, so channels can render profit and rollback tallies.
	if res.Success {
		_ = e.notifier.Notify(ctx, notify.Message{
			Event:  domain.ActivityTradeExecuted,
			Title:  "Trade executed",
			Body:   "opportunity " + res.OpportunityID + " completed",
			Fields: fields,
		})
	} else if res.Attempted {
		_ = e.notifier.Notify(ctx, notify.Message{
			Event:  domain.ActivityAlertTriggered,
			Title:  "Trade failed",
			Body:   "opportunity " + res.OpportunityID + ": " + res.ErrorMessage(),
			Fields: fields,
		})
	}
}

func (e *Engine) persistLedger(ctx context.Context) {
	if err := e.ledgerSt.Store(ctx, e.ledger.Snapshot()); err != nil {
		// Counted and surfaced by the persistence layer; the engine
		// continues on in-memory state.
		e.logger.Error("ledger snapshot failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) recordActivity(ctx context.Context, typ domain.ActivityType, fields map[string]any) {
	err := e.activity.Append(ctx, domain.ActivityRecord{
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Fields:    fields,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("activity append failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) setProvenance(p domain.Provenance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provenance = p
}

// Provenance reports whether the most recent cycle ran on live or synthetic
// market data.
func (e *Engine) Provenance() domain.Provenance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provenance
}

// LastCycleDuration returns how long the most recent cycle took.
func (e *Engine) LastCycleDuration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCycleTook
}

// LastDecision returns the most recent admission decision, for the status
// surface.
func (e *Engine) LastDecision() domain.GateDecision {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastDecision
}

// Stats values the ledger at current prices. Positions without a quote are
// reported at cost.
func (e *Engine) Stats(ctx context.Context) domain.PerformanceStats {
	return e.ledger.Stats(e.currentPrices(ctx))
}

// Positions returns open positions valued at current prices.
func (e *Engine) Positions(ctx context.Context) []domain.ValuedPosition {
	return e.ledger.Positions(e.currentPrices(ctx))
}

func (e *Engine) currentPrices(ctx context.Context) map[string]float64 {
	if e.prices == nil {
		return nil
	}
	prices, err := e.prices.Prices(ctx)
	if err != nil {
		return nil
	}
	return prices
}
