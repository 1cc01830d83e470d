package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crossarb/paperbot/internal/server"
	"github.com/crossarb/paperbot/internal/server/handler"
)

// RunMode runs the trading cycle headless: engine plus feeds, no HTTP surface.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startFeeds(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	g.Go(func() error {
		return deps.Engine.Run(ctx)
	})

	return g.Wait()
}

// MonitorMode serves the API over the persisted state without running trading
// cycles. The live feed still runs so position valuations stay current; no
// orders are placed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startFeeds(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// ServerMode runs only the HTTP API over the persisted state.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// FullMode starts everything: engine cycles, feeds, snapshot archiving, and
// the HTTP API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startFeeds(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	g.Go(func() error {
		return deps.Engine.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// startFeeds starts the live websocket feed goroutine when one is configured.
// The synthetic source needs no goroutine.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.LiveFeed == nil {
		return
	}
	g.Go(func() error {
		defer deps.LiveFeed.Close()
		return deps.LiveFeed.Run(ctx)
	})
}

// startArchiver starts the periodic snapshot uploader when S3 is enabled.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		return deps.Archiver.Run(ctx)
	})
}

// startHTTPServer adds the HTTP server and its graceful-shutdown goroutine to
// the errgroup, honouring server.enabled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.ApiKey,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Engine, deps.Store, a.logger),
		Status:  handler.NewStatusHandler(deps.Engine, deps.Control, deps.Activity, deps.ExecutionHistory, a.logger),
		Control: handler.NewControlHandler(deps.Control, deps.Notifier, a.logger),
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
