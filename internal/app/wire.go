package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	s3blob "github.com/crossarb/paperbot/internal/blob/s3"
	"github.com/crossarb/paperbot/internal/cache/redis"
	"github.com/crossarb/paperbot/internal/config"
	"github.com/crossarb/paperbot/internal/domain"
	"github.com/crossarb/paperbot/internal/engine"
	"github.com/crossarb/paperbot/internal/executor"
	"github.com/crossarb/paperbot/internal/feed"
	"github.com/crossarb/paperbot/internal/gate"
	"github.com/crossarb/paperbot/internal/ledger"
	"github.com/crossarb/paperbot/internal/notify"
	"github.com/crossarb/paperbot/internal/persist"
	"github.com/crossarb/paperbot/internal/store/postgres"
	"github.com/crossarb/paperbot/internal/strategy"
	"github.com/crossarb/paperbot/internal/venue/paper"
)

// syntheticBasePrice is the starting point of the synthetic random walk for
// every market. Binary prediction markets trade in (0,1); the midpoint lets
// walks diverge in either direction.
const syntheticBasePrice = 0.5

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Crash-safe file state.
	Store       *persist.Store
	Control     *persist.ControlStore
	LedgerStore *persist.LedgerStore
	Activity    *persist.ActivityLog

	// Execution core.
	Ledger   *ledger.Ledger
	Venues   *paper.Registry
	Executor *executor.Executor
	Gate     *gate.Gate
	Engine   *engine.Engine

	// Market data. LiveFeed is nil when no websocket URL is configured; the
	// synthetic source is always present as the fallback.
	LiveFeed  *feed.WSFeed
	Synthetic *feed.SyntheticPrices

	// Optional long-term history (nil unless Postgres is enabled).
	ExecutionHistory   domain.ExecutionStore
	OpportunityHistory domain.OpportunityStore

	// Optional snapshot archive (nil unless S3 is enabled).
	Archiver *s3blob.Archiver

	// Notifications.
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Crash-safe file state ---
	store, err := persist.New(persist.Config{
		Dir:            cfg.State.Dir,
		LockTimeout:    cfg.State.LockTimeout.Duration,
		BackupInterval: cfg.State.BackupInterval.Duration,
		SyncDir:        cfg.State.SyncDir,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: state store: %w", err)
	}
	deps.Store = store
	deps.Control = persist.NewControlStore(store)
	deps.LedgerStore = persist.NewLedgerStore(store)

	activity, err := persist.NewActivityLog(ctx, store, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: activity log: %w", err)
	}
	deps.Activity = activity

	// --- Ledger rehydration ---
	snap, err := deps.LedgerStore.Load(ctx)
	switch {
	case err == nil:
		deps.Ledger = ledger.FromSnapshot(snap, logger)
	case errors.Is(err, domain.ErrNotFound):
		deps.Ledger = ledger.New(cfg.Ledger.StartingBalance, logger)
	default:
		// Starting fresh over an unreadable snapshot would silently fork the
		// books; refuse to start instead.
		cleanup()
		return nil, nil, fmt.Errorf("wire: load ledger snapshot: %w", err)
	}

	// --- Venues and executor ---
	registry := paper.NewRegistry()
	for _, v := range cfg.Venues {
		registry.Register(paper.NewClient(paper.ClientConfig{
			Name:        v.Name,
			FillLatency: v.FillLatency.Duration,
			SlippageBps: v.SlippageBps,
			FailureRate: v.FailureRate,
			Seed:        v.Seed,
		}, logger))
	}
	deps.Venues = registry

	exec := executor.New(registry, cfg.Engine.PreferredVenue, logger)
	exec.SetOrderTimeout(cfg.Engine.OrderTimeout.Duration)
	deps.Executor = exec

	// --- Admission gate ---
	// A Redis-backed counter shares the rate ceilings across processes; the
	// in-memory window covers the single-host default.
	var counter domain.TradeCounter = gate.NewMemoryCounter()
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		counter = redis.NewTradeCounter(redisClient)
	}
	deps.Gate = gate.New(gate.Config{
		MaxTradesPerHour: cfg.Limits.MaxTradesPerHour,
		MaxTradesPerDay:  cfg.Limits.MaxTradesPerDay,
	}, deps.Control, counter, logger)

	// --- Market data ---
	marketIDs, basePrices := marketUniverse(cfg.Strategy.Pairs)
	deps.Synthetic = feed.NewSyntheticPrices(basePrices, cfg.Feed.SyntheticSeed)
	if cfg.Feed.WsURL != "" {
		deps.LiveFeed = feed.NewWSFeed(cfg.Feed.WsURL, marketIDs, cfg.Feed.MaxStale.Duration, logger)
		closers = append(closers, deps.LiveFeed.Close)
	}

	// --- Long-term history (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.ExecutionHistory = postgres.NewExecutionStore(pool)
		deps.OpportunityHistory = postgres.NewOpportunityStore(pool)
	}

	// --- Snapshot archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.LedgerStore,
			activity,
			cfg.S3.Interval.Duration,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Cycle driver ---
	// Candidates come from the live feed when one is configured, with the
	// synthetic scanner as the fallback; synthetic-only otherwise.
	scanCfg := strategy.SpreadConfig{
		MinEdgeBps:     cfg.Strategy.MinEdgeBps,
		SizePerLeg:     cfg.Strategy.SizePerLeg,
		PreferredVenue: cfg.Engine.PreferredVenue,
	}
	pairs := marketPairs(cfg.Strategy.Pairs)
	var (
		source     domain.OpportunitySource = strategy.NewSpreadScanner(scanCfg, pairs, deps.Synthetic, logger)
		sourceProv domain.Provenance        = domain.ProvenanceSynthetic
		fallback   domain.OpportunitySource
		prices     domain.PriceSource       = deps.Synthetic
	)
	if deps.LiveFeed != nil {
		fallback = source
		source = strategy.NewSpreadScanner(scanCfg, pairs, deps.LiveFeed, logger)
		sourceProv = domain.ProvenanceLive
		prices = deps.LiveFeed
	}

	deps.Engine = engine.New(engine.Config{
		Interval:       cfg.Engine.Interval.Duration,
		SoftBudget:     cfg.Engine.SoftBudget.Duration,
		PreferredVenue: cfg.Engine.PreferredVenue,
	}, engine.Options{
		Source:             source,
		SourceProvenance:   sourceProv,
		Fallback:           fallback,
		Prices:             prices,
		Gate:               deps.Gate,
		Executor:           exec,
		Ledger:             deps.Ledger,
		LedgerStore:        deps.LedgerStore,
		Activity:           activity,
		ExecutionHistory:   deps.ExecutionHistory,
		OpportunityHistory: deps.OpportunityHistory,
		Notifier:           deps.Notifier,
	}, logger)

	return deps, cleanup, nil
}

// marketPairs converts configured pairs into scanner inputs.
func marketPairs(pairs []config.PairConfig) []strategy.MarketPair {
	out := make([]strategy.MarketPair, 0, len(pairs))
	for _, p := range pairs {
		markets := make(map[string]string, len(p.Markets))
		for venue, marketID := range p.Markets {
			markets[venue] = marketID
		}
		out = append(out, strategy.MarketPair{Symbol: p.Symbol, Markets: markets})
	}
	return out
}

// marketUniverse flattens the configured pairs into the distinct market IDs to
// subscribe to and a base price per market for the synthetic walk.
func marketUniverse(pairs []config.PairConfig) ([]string, map[string]float64) {
	base := make(map[string]float64)
	var ids []string
	for _, p := range pairs {
		for _, marketID := range p.Markets {
			if _, ok := base[marketID]; ok {
				continue
			}
			base[marketID] = syntheticBasePrice
			ids = append(ids, marketID)
		}
	}
	sort.Strings(ids)
	return ids, base
}
