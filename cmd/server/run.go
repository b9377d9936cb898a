package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/bannercfg"
	"github.com/xtding233/gacha-engine/internal/config"
	"github.com/xtding233/gacha-engine/internal/engine"
	"github.com/xtding233/gacha-engine/internal/gacha"
	"github.com/xtding233/gacha-engine/internal/host"
	"github.com/xtding233/gacha-engine/internal/metrics"
	"github.com/xtding233/gacha-engine/internal/playerstore"
	"github.com/xtding233/gacha-engine/internal/server"
	"github.com/xtding233/gacha-engine/internal/telemetry"
)

// run wires every component and blocks until ctx is cancelled or the
// HTTP server fails.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	store, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()

	loader := bannercfg.NewLoader(cfg.Gacha.BannerFile)
	banners, err := loadBanners(loader, log)
	if err != nil {
		return err
	}

	rng := gacha.DefaultRNG()
	if cfg.Gacha.Seed != 0 {
		rng = gacha.NewSeededRNG(cfg.Gacha.Seed)
		log.Warn("using a fixed seed, results are deterministic", zap.Uint64("seed", cfg.Gacha.Seed))
	}

	m := metrics.New()
	players := host.NewMemory(cfg.Host.InventorySize, log.Named("host"))
	eng := engine.New(engine.Options{
		Banners:  banners,
		Loader:   loader,
		Store:    store,
		Host:     players,
		RNG:      rng,
		Logger:   log.Named("engine"),
		Metrics:  m,
		MaxPulls: cfg.Gacha.MaxPulls,
	})

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		eng.Run(loopCtx)
		close(loopDone)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	if cfg.Gacha.Watch {
		w, err := bannercfg.NewWatcher(cfg.Gacha.BannerFile, cfg.Gacha.Debounce, func(path string) {
			res, err := eng.Reload(ctx)
			if err != nil {
				log.Error("banner reload failed", zap.String("path", path), zap.Error(err))
				return
			}
			log.Info("banners reloaded", zap.String("path", path),
				zap.Int("banners", res.Banners), zap.Bool("deferred", res.Deferred))
		}, log.Named("watcher"))
		if err != nil {
			log.Warn("banner file watch disabled", zap.Error(err))
		} else {
			w.Start()
			defer func() { _ = w.Stop() }()
		}
	}

	if cfg.Flush.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Flush.Schedule, func() {
			if _, err := eng.Flush(ctx); err != nil {
				log.Error("scheduled flush failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("flush schedule %q: %w", cfg.Flush.Schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	srv := server.New(cfg.Server.Addr, eng, players, m, log.Named("http"))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(sctx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	n, err := eng.Flush(sctx)
	if err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	log.Info("player data flushed", zap.Int("players", n))
	if err := eng.SaveBanners(sctx); err != nil {
		log.Warn("banner file not saved", zap.String("path", loader.Path()), zap.Error(err))
	}
	return nil
}

// openStore picks the player store backend.
func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (playerstore.Store, error) {
	log = log.Named("store")
	switch cfg.Kind {
	case config.StoreRedis:
		rdb, err := playerstore.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return playerstore.NewRedisStore(rdb, cfg.Redis.Prefix, log), nil
	case config.StoreSQLite:
		return playerstore.OpenSQLite(cfg.Path, log)
	default:
		return playerstore.OpenFile(cfg.Path, log)
	}
}

// loadBanners reads the banner file. A missing file yields no banners.
// Generated UUIDs must reach the file, or progress on those banners would
// be lost on the next start.
func loadBanners(loader *bannercfg.Loader, log *zap.Logger) ([]*gacha.Banner, error) {
	banners, diags, err := loader.Banners()
	if err != nil {
		return nil, err
	}
	diags.Log(log.Named("bannercfg"))
	if len(banners) == 0 {
		log.Warn("no banners loaded", zap.String("path", loader.Path()))
	} else {
		log.Info("banners loaded", zap.Int("banners", len(banners)), zap.Int("diagnostics", len(diags)))
	}
	return banners, nil
}
