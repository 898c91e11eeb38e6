package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/starford/randpic/internal/catalog"
	"github.com/starford/randpic/internal/checksum"
	"github.com/starford/randpic/internal/content"
	"github.com/starford/randpic/internal/dispatch"
	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/metrics"
	"github.com/starford/randpic/internal/ratelimit"
	"github.com/starford/randpic/internal/reconcile"
	"github.com/starford/randpic/internal/sse"
	"github.com/starford/randpic/internal/storage"
	"github.com/starford/randpic/internal/usage"
)

// runtime holds the components shared by the serve and mcp commands.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	files   storage.Provider
	db      *index.DB
	limiter *ratelimit.Limiter
	broker  *sse.Broker
	metrics *metrics.Metrics
	engine  *dispatch.Engine
}

// close drains pending ledger writes before the database goes away.
func (rt *runtime) close() {
	rt.engine.Wait()
	rt.broker.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Error("close index", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option, logOut io.Writer) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// build opens storage and the index, loads the catalog, wires the engine
// and runs the startup sync.
func build(ctx context.Context, app *application) (*runtime, error) {
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("hash", cfg.Store.Hash),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("ratelimit_ceiling", cfg.RateLimit.Ceiling),
		slog.Duration("ratelimit_interval", cfg.RateLimit.Interval),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	files, err := storage.NewFS(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	alg := checksum.Algorithm(cfg.Store.Hash).Canonical()
	hasher, err := checksum.For(alg)
	if err != nil {
		return nil, fmt.Errorf("init checksum: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := db.BindHash(ctx, string(alg)); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}

	registry, aliases, err := catalog.Load(ctx, db, files,
		catalog.WithTimeout(cfg.Store.IOTimeout), catalog.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	store := content.New(files, db,
		content.WithHasher(hasher),
		content.WithTimeout(cfg.Store.IOTimeout),
		content.WithLogger(logger))

	limiter := ratelimit.New(cfg.RateLimit.Ceiling)
	broker := sse.NewBroker(2*time.Second, dispatch.EventDispatched)
	m := metrics.New()

	eng := dispatch.New(registry, aliases, limiter, store, usage.New(db),
		dispatch.WithObserver(m),
		dispatch.WithEvents(broker),
		dispatch.WithLogger(logger),
		dispatch.WithLedgerTimeout(cfg.Store.IOTimeout))
	m.TrackImages(eng)

	if err := reconcile.Sync(ctx, files, eng, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		files:   files,
		db:      db,
		limiter: limiter,
		broker:  broker,
		metrics: m,
		engine:  eng,
	}, nil
}

// watch runs the directory watcher. Changes reach the SSE feed through
// the engine's event sink.
func (rt *runtime) watch(ctx context.Context) error {
	return reconcile.Watch(ctx, rt.files, rt.engine, rt.logger, nil)
}
