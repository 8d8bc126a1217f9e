// Package bootstrap wires configuration, storage and the trading loop
// into a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridwalls/internal/alert"
	"gridwalls/internal/core"
	"gridwalls/internal/infrastructure/health"
	"gridwalls/internal/infrastructure/metrics"
	"gridwalls/internal/storage"
	"gridwalls/internal/storage/memory"
	"gridwalls/internal/storage/postgres"
	"gridwalls/internal/storage/sqlite"
	"gridwalls/internal/trading/monitor"
	"gridwalls/internal/trading/orchestrator"
	"gridwalls/internal/trading/order"
	"gridwalls/pkg/concurrency"
	apphttp "gridwalls/pkg/http"
	"gridwalls/pkg/logging"
	"gridwalls/pkg/retry"
	"gridwalls/pkg/telemetry"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// App represents the application context and holds core dependencies.
type App struct {
	Cfg          *Config
	Logger       *logging.ZapLogger
	Store        core.IStore
	Orchestrator *orchestrator.Orchestrator

	telemetry *telemetry.Telemetry
	alerts    *alert.AlertManager
	pool      *concurrency.WorkerPool
	server    *metrics.Server
}

// NewApp creates a new App instance by bootstrapping all dependencies.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return NewAppFromConfig(ctx, cfg)
}

// NewAppFromConfig bootstraps the application from a validated config
func NewAppFromConfig(ctx context.Context, cfg *Config) (*App, error) {
	// Telemetry first: the logger bridges into its log provider
	tel, err := telemetry.Setup(cfg.App.Name, telemetry.Options{ExportTraces: cfg.Telemetry.ExportTraces})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	logger, err := InitLogger(cfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("logger: %w", err)
	}

	app := &App{Cfg: cfg, Logger: logger, telemetry: tel}
	if err := app.wire(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Cfg

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	a.Store = store

	seeds := make([]core.WallConfig, 0, len(cfg.Walls))
	for _, seed := range cfg.Walls {
		wall, err := seed.WallConfig()
		if err != nil {
			return fmt.Errorf("wall seed %s: %w", seed.Pair, err)
		}
		seeds = append(seeds, wall)
	}
	seeded, err := storage.SeedWalls(ctx, store, seeds)
	if err != nil {
		return fmt.Errorf("seed walls: %w", err)
	}
	if seeded > 0 {
		a.Logger.Info("Seeded walls from config", "count", seeded)
	}

	a.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:       "alerts",
		MaxWorkers: cfg.Alerts.Workers,
	}, a.Logger)
	a.alerts = alert.NewAlertManager(a.pool, a.Logger)
	if url := cfg.Alerts.WebhookURL.Reveal(); url != "" {
		a.alerts.AddChannel(alert.NewWebhookChannel(url, cfg.Alerts.RatePerSecond))
	}
	if token := cfg.Alerts.TelegramBotToken.Reveal(); token != "" {
		a.alerts.AddChannel(alert.NewTelegramChannel(token, cfg.Alerts.TelegramChatID))
	}
	if len(a.alerts.Channels()) == 0 {
		a.Logger.Warn("No alert channel configured, alerts go to the log")
		a.alerts.AddChannel(alert.NewLogChannel(a.Logger))
	}

	fetcher := apphttp.NewFetcher(retry.Policy{
		MaxAttempts: cfg.Prices.MaxAttempts,
		Delay:       cfg.Prices.RetryDelay,
	}, a.Logger)
	prices := monitor.NewPriceSource(fetcher, cfg.Prices.BaseURL, cfg.Prices.VSCurrency, cfg.Prices.Timeout, a.Logger)
	errMonitor := monitor.NewErrorMonitor(cfg.Monitor.ErrorThreshold, cfg.Monitor.ErrorInterval, a.alerts, a.Logger)

	a.Orchestrator = orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Walls:      store,
		Executions: store,
		Prices:     prices,
		Executor:   order.NewPaperExecutor(cfg.Loop.OrdersPerSecond, a.Logger),
		Notifier:   a.alerts,
		Monitor:    errMonitor,
	}, cfg.Loop.Interval, a.Logger)

	if cfg.Telemetry.EnableMetrics {
		hm := health.NewHealthManager(a.Logger)
		hm.Register("store", health.StoreCheck(store))
		hm.Register("cycle", health.FreshnessCheck(
			telemetry.GetGlobalMetrics().LastCycleSuccess,
			3*cfg.Loop.Interval+cfg.Prices.Timeout*time.Duration(cfg.Prices.MaxAttempts),
			time.Now(), time.Now))
		a.server = metrics.NewServer(cfg.Telemetry.MetricsPort, a.telemetry.Handler(), hm, a.Logger).
			WithPriceUpdates(prices.LastUpdate)
	}

	return nil
}

func openStore(ctx context.Context, cfg *Config) (core.IStore, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Storage.DSN.Reveal())
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.Storage.DSN.Reveal())
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Runner is an interface for components that can be run and stopped gracefully.
type Runner interface {
	Run(ctx context.Context) error
}

// Run reports the potential spend, then runs the trading loop and any extra
// runners until a termination signal is received.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return err
		}
	}

	if _, err := a.Orchestrator.ReportPotentialSpend(ctx); err != nil {
		a.Logger.Warn("Potential spend report failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("starting application", "interval", a.Cfg.Loop.Interval.String())

	g.Go(func() error {
		return a.Orchestrator.Run(ctx)
	})
	for _, runner := range runners {
		r := runner
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("application stopped with error", "error", err)
		return err
	}

	a.Logger.Info("application shut down gracefully")
	return nil
}

// RunOnce reports the potential spend and evaluates every wall a single time
func (a *App) RunOnce(ctx context.Context) (*orchestrator.CycleReport, error) {
	if _, err := a.Orchestrator.ReportPotentialSpend(ctx); err != nil {
		a.Logger.Warn("Potential spend report failed", "error", err)
	}
	return a.Orchestrator.RunOnce(ctx)
}

// Close releases every resource held by the app
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Stop(ctx))
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
