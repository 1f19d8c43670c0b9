package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/bundlekeeper/pkg/bundle"
	"github.com/openfroyo/bundlekeeper/pkg/clients/appengine"
	"github.com/openfroyo/bundlekeeper/pkg/clients/cluster"
	"github.com/openfroyo/bundlekeeper/pkg/config"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
	"github.com/openfroyo/bundlekeeper/pkg/processors"
	"github.com/openfroyo/bundlekeeper/pkg/stores"
	"github.com/openfroyo/bundlekeeper/pkg/telemetry"
)

// app holds the components a command runs against.
type app struct {
	cfg       *config.Config
	tel       *telemetry.Telemetry
	store     *stores.SQLiteStore
	opener    *bundle.DirOpener
	scheduler *engine.Scheduler
}

// runWithApp builds the app, runs fn and tears the app down. Running jobs
// are drained before the store closes.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, ctx, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close(ctx)

	return fn(ctx, a)
}

func openApp(ctx context.Context) (*app, context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, ctx, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	ctx = tel.WithContext(ctx)

	store, err := stores.NewSQLiteStore(cfg.StoreSettings())
	if err != nil {
		return nil, ctx, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, ctx, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, ctx, err
	}

	engineClient, err := appengine.NewClient(cfg.EngineSettings())
	if err != nil {
		_ = store.Close()
		return nil, ctx, err
	}

	// A nil interface disables plugin deployment.
	var clusterClient processors.ClusterClient
	if cfg.Cluster.Enabled {
		c, err := cluster.NewClient(cfg.ClusterSettings())
		if err != nil {
			_ = store.Close()
			return nil, ctx, err
		}
		clusterClient = c
	}

	registry, err := processors.DefaultRegistry(engineClient, clusterClient)
	if err != nil {
		_ = store.Close()
		return nil, ctx, err
	}

	opener := bundle.NewDirOpener(tel.Logger.Zerolog())
	return &app{
		cfg:       cfg,
		tel:       tel,
		store:     store,
		opener:    opener,
		scheduler: engine.NewScheduler(store, opener, registry, engine.WithUsageClient(engineClient)),
	}, ctx, nil
}

func (a *app) close(ctx context.Context) {
	a.scheduler.Wait()
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
	if err := a.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}
