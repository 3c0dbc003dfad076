// Package main is the entry point for the dunning recovery engine.
// It wires all dependencies together, starts the evaluation loop, and
// serves the operational HTTP endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/recoverops/dunning/internal/casestore"
	"github.com/recoverops/dunning/internal/catalog"
	"github.com/recoverops/dunning/internal/channel"
	"github.com/recoverops/dunning/internal/config"
	"github.com/recoverops/dunning/internal/dedup"
	"github.com/recoverops/dunning/internal/engine"
	"github.com/recoverops/dunning/internal/observability"
	"github.com/recoverops/dunning/internal/records"
	"github.com/recoverops/dunning/internal/stats"
	"github.com/recoverops/dunning/internal/transport"
	"github.com/recoverops/dunning/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	runOnce := flag.Bool("once", false, "run a single evaluation pass and exit")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize logger and metrics.
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "dunningd", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(flushCtx); err != nil {
			logger.Warn("tracing shutdown error", zap.Error(err))
		}
	}()

	// Step 4: Load workflow definitions, validate, build registry.
	loader := catalog.NewLoader()
	files, err := loader.LoadAll(cfg.Catalog.Directories)
	if err != nil {
		logger.Error("workflow catalog loading failed", zap.Error(err))
		return 1
	}

	validator := catalog.NewValidator()
	verrs := validator.Validate(files)
	if len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("workflow validation error", zap.String("error", ve.Error()))
		}
		logger.Error("workflow catalog validation failed", zap.Int("errors", len(verrs)))
		return 1
	}

	registry := catalog.NewRegistry(files)
	logger.Info("workflow catalog loaded",
		zap.Int("workflows", registry.Len()),
		zap.String("checksum", registry.Checksum()),
	)

	// Step 5: Initialize stores.
	caseStore, caseCloser, err := buildCaseStore(ctx, cfg.CaseStore, logger)
	if err != nil {
		logger.Error("case store initialization failed", zap.Error(err))
		return 1
	}
	defer closeIfSet(caseCloser)

	recordStore, recordCloser, err := buildRecordStore(ctx, cfg.RecordStore, logger)
	if err != nil {
		logger.Error("record store initialization failed", zap.Error(err))
		return 1
	}
	defer closeIfSet(recordCloser)

	dedupStore, dedupCloser, err := buildDedupStore(ctx, cfg.Dedup, logger)
	if err != nil {
		logger.Error("dedup store initialization failed", zap.Error(err))
		return 1
	}
	defer closeIfSet(dedupCloser)

	// Step 6: Register delivery channels. All channels currently log their
	// sends; real integrations slot in behind the same Sender interface.
	senders := channel.NewRegistry()
	for _, ch := range model.Channels {
		senders.Register(ch, channel.NewLogSender(logger, ch))
	}

	// Step 7: Build the engine.
	dispatcher := engine.NewDispatcher(senders, recordStore, dedupStore, metrics, logger, cfg.Engine.ActionFiredTTL)
	evaluator := engine.NewEvaluator(registry, caseStore, dispatcher, dedupStore, metrics, logger,
		engine.WithCaseTimeout(cfg.Engine.CaseTimeout),
		engine.WithMaxConcurrency(cfg.Engine.MaxConcurrency),
		engine.WithWorkflowFiredTTL(cfg.Engine.WorkflowFiredTTL),
	)

	if *runOnce {
		report, err := evaluator.EvaluateAllCases(ctx)
		if err != nil {
			logger.Error("evaluation failed", zap.Error(err))
			return 1
		}
		logger.Info("single evaluation pass complete",
			zap.Int("actions_dispatched", report.ActionsDispatched))
		return 0
	}

	// Step 8: Build the statistics aggregator.
	aggregator := stats.NewAggregator(recordStore, caseStore, logger,
		cfg.Stats.CacheTTL, cfg.Stats.ResolutionWindow)

	// Step 9: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{
		CatalogLoaded: func() bool { return registry.Len() > 0 },
	}
	if hc, ok := caseStore.(observability.HealthChecker); ok {
		readinessChecks.CaseStore = hc
	}
	if hc, ok := recordStore.(observability.HealthChecker); ok {
		readinessChecks.RecordStore = hc
	}
	if hc, ok := dedupStore.(observability.HealthChecker); ok {
		readinessChecks.DedupStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Registry:       registry,
		Logger:         logger,
		HealthHandler:  observability.HandleHealth(),
		ReadyHandler:   observability.HandleReady(readinessChecks),
		MetricsHandler: observability.Handler(),
		Stats:          aggregator,
		HandlerTimeout: cfg.Server.ReadTimeout,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      observability.TracingMiddleware(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start the evaluation loop.
	loopCtx, loopCancel := context.WithCancel(ctx)
	defer loopCancel()
	go runEvaluationLoop(loopCtx, evaluator, cfg.Engine.Interval, logger)

	// Step 11: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Duration("evaluation_interval", cfg.Engine.Interval),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	loopCancel()

	logger.Info("shutdown complete")
	return 0
}

// runEvaluationLoop runs an immediate evaluation pass, then one per tick,
// until the context is cancelled.
func runEvaluationLoop(ctx context.Context, evaluator *engine.Evaluator, interval time.Duration, logger *zap.Logger) {
	if interval == 0 {
		interval = time.Hour
	}

	evaluate := func() {
		report, err := evaluator.EvaluateAllCases(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("evaluation run failed", zap.Error(err))
			}
			return
		}
		if report.CasesFailed > 0 {
			logger.Warn("evaluation run had case failures",
				zap.Int("cases_failed", report.CasesFailed))
		}
	}

	evaluate()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evaluate()
		}
	}
}

// buildCaseStore creates the case store based on config.
func buildCaseStore(ctx context.Context, cfg config.PgStoreConfig, logger *zap.Logger) (casestore.CaseStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory case store")
		return casestore.NewMemoryCaseStore(), nil, nil
	case "postgres", "":
		pool, err := newPgPool(ctx, cfg, "case store")
		if err != nil {
			return nil, nil, err
		}
		return casestore.NewPgCaseStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported case store driver: %q", cfg.Driver)
	}
}

// buildRecordStore creates the action record store based on config.
func buildRecordStore(ctx context.Context, cfg config.PgStoreConfig, logger *zap.Logger) (records.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory record store")
		return records.NewMemoryStore(), nil, nil
	case "postgres", "":
		pool, err := newPgPool(ctx, cfg, "record store")
		if err != nil {
			return nil, nil, err
		}
		return records.NewPgStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported record store driver: %q", cfg.Driver)
	}
}

// buildDedupStore creates the idempotency marker store based on config.
func buildDedupStore(ctx context.Context, cfg config.DedupConfig, logger *zap.Logger) (dedup.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory dedup store")
		return dedup.NewMemoryStore(), nil, nil
	case "redis", "":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("dedup store: %s environment variable not set", cfg.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("dedup store: ping: %w", err)
		}
		return dedup.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dedup store driver: %q", cfg.Driver)
	}
}

// newPgPool builds a pgx pool from a PgStoreConfig, reading the DSN from the
// configured environment variable.
func newPgPool(ctx context.Context, cfg config.PgStoreConfig, label string) (*pgxpool.Pool, error) {
	dsn := os.Getenv(cfg.DSNEnv)
	if dsn == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", label, cfg.DSNEnv)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: parse DSN: %w", label, err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", label, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", label, err)
	}
	return pool, nil
}

func closeIfSet(closer func()) {
	if closer != nil {
		closer()
	}
}
