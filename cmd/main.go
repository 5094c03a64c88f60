package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quorum/internal/adapters/config"
	"quorum/internal/adapters/errors/noop"
	"quorum/internal/adapters/errors/sentry"
	"quorum/internal/adapters/kafka"
	"quorum/internal/adapters/marketdata"
	"quorum/internal/adapters/redis"
	"quorum/internal/agents"
	"quorum/internal/agents/workflow"
	"quorum/internal/api"
	"quorum/internal/api/health"
	"quorum/internal/domain/decision"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/risk"
	"quorum/internal/events"
	"quorum/internal/metrics"
	"quorum/internal/services/advisor"
	"quorum/internal/services/execution"
	"quorum/internal/workers"
	"quorum/internal/workers/advisory"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

const (
	version = "0.1.0"

	// consecutive failed sweeps before readiness fails
	workerFailureThreshold = 3
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra := initInfrastructure(ctx, cfg, log)
	defer infra.Close(log)

	core, err := initCore(cfg, infra, errorTracker)
	if err != nil {
		log.Fatalf("Failed to initialize core: %v", err)
	}

	scheduler := initWorkers(cfg, core, infra)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	server := initServer(cfg, core, infra, scheduler, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, server, scheduler, errorTracker, log)
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// Infrastructure holds the optional external adapters. Any of them may be nil.
type Infrastructure struct {
	Redis    *redis.Client
	Producer *kafka.Producer
	Events   *events.Publisher
}

// Close releases infrastructure connections
func (i *Infrastructure) Close(log *logger.Logger) {
	if i.Producer != nil {
		if err := i.Producer.Close(); err != nil {
			log.Warnf("Failed to close Kafka producer: %v", err)
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			log.Warnf("Failed to close Redis: %v", err)
		}
	}
}

// initInfrastructure connects Redis and Kafka when configured. Failures degrade
// to in-process operation instead of aborting startup.
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) *Infrastructure {
	infra := &Infrastructure{Events: events.NewNoopPublisher()}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warnf("Redis unavailable, continuing without cache and archive: %v", err)
		} else {
			infra.Redis = client
			log.Infow("Redis connected", "addr", cfg.Redis.Addr())
		}
	}

	if cfg.Kafka.Enabled() {
		infra.Producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		infra.Events = events.NewPublisher(infra.Producer)
		log.Infow("Kafka event publishing enabled", "brokers", cfg.Kafka.Brokers)
	}

	return infra
}

// Core is the analysis core behind the advisor service
type Core struct {
	Registry   *agents.Registry
	Dispatcher *agents.Dispatcher
	Workflow   *workflow.Engine
	Advisor    *advisor.Service
}

func initCore(cfg *config.Config, infra *Infrastructure, tracker errors.Tracker) (*Core, error) {
	var cache marketdata.Cache
	if infra.Redis != nil {
		cache = infra.Redis
	}
	source, err := marketdata.NewFromConfig(cfg.MarketData, cache)
	if err != nil {
		return nil, errors.Wrap(err, "market data source")
	}

	loc, err := time.LoadLocation(cfg.Execution.Timezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "execution timezone %q: %v", cfg.Execution.Timezone, err)
	}
	simulator := execution.NewSimulator(execution.Config{
		MaxNotional:     cfg.Execution.MaxNotional,
		OpenHour:        cfg.Execution.OpenHour,
		CloseHour:       cfg.Execution.CloseHour,
		Location:        loc,
		EnforceHours:    cfg.Execution.EnforceHours,
		CommissionRate:  cfg.Execution.CommissionRate,
		MinCommission:   cfg.Execution.MinCommission,
		ExchangeFeeRate: cfg.Execution.ExchangeFeeRate,
		HistorySize:     cfg.Execution.HistorySize,
	}, execution.WithEvents(infra.Events))

	sizer := risk.NewKellySizer(cfg.Sizing.PortfolioValue, cfg.Sizing.AvgWinPct, cfg.Sizing.MaxKelly, cfg.Sizing.LotSize)
	decisions := decision.NewEngine()

	registry := agents.NewRegistry()
	if err := advisor.RegisterWorkers(registry, advisor.Components{
		Source:    source,
		Fusion:    fusion.NewEngine(cfg.Fusion.Weights, cfg.Fusion.FallbackWeight),
		Decisions: decisions,
		Sizer:     sizer,
		Simulator: simulator,
		Location:  loc,
	}); err != nil {
		return nil, errors.Wrap(err, "register workers")
	}

	dispatcher := agents.NewDispatcher(registry,
		agents.WithTaskTimeout(cfg.Workflow.StageTimeout),
		agents.WithTracker(tracker),
	)

	opts := []workflow.Option{
		workflow.WithEvents(infra.Events),
		workflow.WithDecisionEngine(decisions),
	}
	if infra.Redis != nil {
		opts = append(opts, workflow.WithArchive(infra.Redis))
	}
	wf := workflow.NewEngine(dispatcher, cfg.Workflow, opts...)

	svc := advisor.NewService(dispatcher, wf, sizer, simulator)
	if infra.Redis != nil {
		svc.WithArchive(infra.Redis)
	}

	prometheus.MustRegister(metrics.NewRegistryCollector(func() []metrics.AgentStat {
		records := registry.Snapshot()
		stats := make([]metrics.AgentStat, 0, len(records))
		for _, r := range records {
			stats = append(stats, metrics.AgentStat{Name: r.Name, SuccessRate: r.SuccessRate, TaskCount: r.TaskCount})
		}
		return stats
	}))

	return &Core{Registry: registry, Dispatcher: dispatcher, Workflow: wf, Advisor: svc}, nil
}

// initWorkers registers background workers with the scheduler
func initWorkers(cfg *config.Config, core *Core, infra *Infrastructure) *workers.Scheduler {
	scheduler := workers.NewScheduler()

	var locker advisory.Locker
	if infra.Redis != nil {
		locker = infra.Redis
	}
	scheduler.RegisterWorker(advisory.NewWatchlistAnalyzer(core.Advisor, cfg.Workers.Watchlist, cfg.Workers.WatchlistInterval, locker))
	scheduler.RegisterWorker(advisory.NewAgentHealthMonitor(core.Advisor, infra.Events, cfg.Workers.HealthCheckInterval))

	return scheduler
}

// initServer builds the ops HTTP server
func initServer(cfg *config.Config, core *Core, infra *Infrastructure, scheduler *workers.Scheduler, log *logger.Logger) *api.Server {
	checks := map[string]health.Check{
		"agents":    core.Advisor.Ready,
		"scheduler": scheduler.Check(workerFailureThreshold),
	}
	if infra.Redis != nil {
		checks["redis"] = infra.Redis.Health
	}

	healthHandler := health.New(logger.Component("health"), cfg.App.Name, version, checks)
	return api.NewServer(api.ServerConfig{
		Port:        cfg.HTTP.Port,
		ServiceName: cfg.App.Name,
		Version:     version,
	}, healthHandler, core.Advisor, log)
}

// waitForShutdown waits for a signal or a fatal component error, then stops
// the server, the workers and flushes the tracker
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	server *api.Server,
	scheduler *workers.Scheduler,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}

	cancel()
	if err := scheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
