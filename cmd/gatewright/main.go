package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	gwhttp "github.com/gatewright/gatewright/internal/adapter/http"
	"github.com/gatewright/gatewright/internal/adapter/litellm"
	gwnats "github.com/gatewright/gatewright/internal/adapter/nats"
	gwotel "github.com/gatewright/gatewright/internal/adapter/otel"
	"github.com/gatewright/gatewright/internal/adapter/postgres"
	"github.com/gatewright/gatewright/internal/adapter/ristretto"
	"github.com/gatewright/gatewright/internal/adapter/ws"
	"github.com/gatewright/gatewright/internal/config"
	"github.com/gatewright/gatewright/internal/domain/agentrun"
	"github.com/gatewright/gatewright/internal/logger"
	"github.com/gatewright/gatewright/internal/port/provider"
	"github.com/gatewright/gatewright/internal/resilience"
	"github.com/gatewright/gatewright/internal/service"
	"github.com/gatewright/gatewright/internal/validator"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := gwotel.Setup(ctx, cfg.OTel, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	var metrics service.Metrics
	var observer service.StepObserver
	if cfg.OTel.Enabled {
		m, err := gwotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
		metrics = m
		observer = gwotel.NewStepTracer()
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := gwnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// L1 cache for sandbox verdicts
	verdictCache, err := ristretto.New(cfg.Cache.MaxSizeMB * 1024 * 1024)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer verdictCache.Close()

	// --- Services ---
	hub := ws.NewHub()
	go hub.Heartbeat(ctx, 30*time.Second)

	events := service.NewEventLog(0)
	broadcaster := service.Fanout{hub, events}

	store := postgres.NewStore(pool)

	engine := service.NewGateEngine(validator.Defaults(), broadcaster,
		cfg.Gates.NoSoftGates, cfg.Gates.ValidatorTimeout)
	lifecycle := service.NewLifecycle(store, queue, broadcaster, engine,
		service.NewSpecStager(store), metrics)

	cancelAborts, err := lifecycle.SubscribeAborts(ctx)
	if err != nil {
		return fmt.Errorf("abort subscriber: %w", err)
	}
	defer cancelAborts()

	llmClient := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	providers := provider.NewRegistry()
	providers.Register(llmClient)

	sandboxExec := service.NewSandboxExec(cfg.Sandbox, verdictCache, metrics,
		cfg.Pipeline.ToolTimeout, cfg.Cache.VerdictTTL)
	pipeline := service.NewPipeline(store, providers, service.DefaultToolset(sandboxExec),
		broadcaster, queue, metrics, observer, agentrun.DefaultPrices(), cfg.Pipeline)

	// --- HTTP ---
	handlers := &gwhttp.Handlers{
		Runs:      lifecycle,
		Pipeline:  pipeline,
		Sandbox:   sandboxExec,
		Store:     store,
		Providers: providers,
		LiteLLM:   llmClient,
		Events:    events,
		Hub:       hub,
	}

	r := chi.NewRouter()
	r.Use(gwhttp.SecurityHeaders)
	r.Use(gwhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(gwhttp.RequestID)
	r.Use(gwhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	gwhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // pipeline executions respond synchronously
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "error", err)
	}

	// Let in-flight validation runs reach a terminal state before the
	// process exits; a run must never be left RUNNING.
	lifecycle.Wait()

	if err := queue.Drain(); err != nil {
		slog.Warn("nats drain", "error", err)
	}
	return nil
}
