package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/judgeflow/internal/adapters/http/api"
	"github.com/okian/judgeflow/internal/adapters/http/swagger"
	"github.com/okian/judgeflow/internal/adapters/notify"
	"github.com/okian/judgeflow/internal/adapters/repository"
	app "github.com/okian/judgeflow/internal/app"
	"github.com/okian/judgeflow/internal/config"
	"github.com/okian/judgeflow/pkg/logger"
	"github.com/okian/judgeflow/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "judgeflow exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the service and serves HTTP until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}()

	publisher, err := buildPublisher(cfg, log)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithPublisher(publisher),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDedupeTTL(cfg.DedupeTTL()),
		app.WithGenerateTimeout(cfg.GenerateTimeout()),
		app.WithBlockSize(cfg.BlockSize),
		app.WithClosenessCap(cfg.ClosenessCap),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Warn(ctx, "service stop reported errors", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	handler, err := newHandler(ctx, cfg, svc, log)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildStore opens the configured backend and loads the seed snapshot.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store {
	case config.StorePostgres:
		db, err := repository.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, fmt.Errorf("postgres handle: %w", err)
		}
		store := repository.NewGormStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, noop, err
		}
		if cfg.SeedFile != "" {
			snap, err := repository.LoadSnapshotFile(cfg.SeedFile)
			if err != nil {
				_ = sqlDB.Close()
				return nil, noop, err
			}
			if err := store.Seed(ctx, snap); err != nil {
				_ = sqlDB.Close()
				return nil, noop, err
			}
		}
		log.Info(ctx, "using postgres store")
		return store, sqlDB.Close, nil

	default:
		store := repository.NewMemoryStore()
		if cfg.SeedFile != "" {
			snap, err := repository.LoadSnapshotFile(cfg.SeedFile)
			if err != nil {
				return nil, noop, err
			}
			if err := store.Seed(snap); err != nil {
				return nil, noop, err
			}
		}
		teams, judges, _ := store.Count()
		log.Info(ctx, "using memory store", logger.Int("teams", teams), logger.Int("judges", judges))
		return store, noop, nil
	}
}

// buildPublisher connects to NATS when configured.
func buildPublisher(cfg *config.Config, log logger.Logger) (notify.Publisher, error) {
	if cfg.NATSURL == "" {
		return notify.Nop{}, nil
	}
	pub, err := notify.Connect(cfg.NATSURL, notify.WithSubject(cfg.NATSSubject))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Info(context.Background(), "publishing plans to nats",
		logger.String("url", cfg.NATSURL), logger.String("subject", cfg.NATSSubject))
	return pub, nil
}

// newHandler builds the root router with API and docs routes.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) (http.Handler, error) {
	opts := []api.Option{api.WithLogger(log.Named("api"))}
	if cfg.JWTSecret != "" {
		opts = append(opts, api.WithAuthenticator(api.NewAuthenticator(cfg.JWTSecret)))
	} else {
		log.Warn(ctx, "jwt_secret is empty; admin routes are unauthenticated")
	}

	r := api.NewServer(svc, svc, opts...).Router(ctx)
	if err := swagger.Register(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	// GetStats refreshes the queue gauge itself.
	stats := svc.GetStats()
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
