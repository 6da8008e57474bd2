package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/adapters/config/file"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/adapters/events/async"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/adapters/events/direct"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/metrics"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pipeline"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/pkg/config"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/runtime"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/server"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/storage"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/telemetry"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/writer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	provider, err := file.NewProvider(*configPath, bootstrap)
	if err != nil {
		log.Fatalf("Failed to create config provider: %v", err)
	}
	cfg, err := provider.Load(context.Background())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Telemetry.LogLevel)); err != nil {
		log.Fatalf("Invalid telemetry.log_level %q: %v", cfg.Telemetry.LogLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	traceOut, closeTraceOut, err := traceOutput(cfg.Telemetry.TraceOutput)
	if err != nil {
		log.Fatalf("Failed to open trace output: %v", err)
	}
	defer closeTraceOut()

	shutdownTracer, err := telemetry.InitTracer("rumd", traceOut, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	promMetrics := telemetry.NewMetrics()

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	publisher, err := newPublisher(cfg, store, logger)
	if err != nil {
		log.Fatalf("Failed to create publisher: %v", err)
	}

	mapper, err := pipeline.NewExecutorFromConfig(cfg.Pipeline, logger)
	if err != nil {
		log.Fatalf("Failed to create event pipeline: %v", err)
	}

	writerOpts := []writer.Option{writer.WithMetrics(promMetrics), writer.WithLogger(logger)}
	if mapper.HasStages() {
		writerOpts = append(writerOpts, writer.WithMapper(mapper))
	}
	if publisher != nil {
		writerOpts = append(writerOpts, writer.WithPublisher(publisher))
	}

	hitches := metrics.NewHitchesMonitor()
	appState := server.NewApplicationState()

	monitor, err := runtime.New(
		runtime.WithLogger(logger),
		runtime.WithConfig(cfg),
		runtime.WithConfigProvider(provider),
		runtime.WithWriter(writer.New(writerOpts...)),
		runtime.WithDefaultTrackers(cfg.Metrics, hitches),
		runtime.WithAppStateProvider(appState.Get),
		runtime.WithMetrics(promMetrics),
		runtime.WithTracer(telemetry.Tracer()),
	)
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitor.Start(ctx); err != nil {
		log.Fatalf("Failed to start monitor: %v", err)
	}

	intake, err := server.NewIntake(server.IntakeConfig{
		Monitor:      monitor,
		Store:        store,
		Hitches:      hitches,
		AppState:     appState,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to create intake: %v", err)
	}

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)
	srv.Router.Handle("/metrics", promMetrics.Handler())
	srv.Mount(intake, cfg.Server.ClientTokens)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	logger.Info("rumd started",
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("async_publish", cfg.Pipeline.Async),
		slog.Bool("client_tokens", len(cfg.Server.ClientTokens) > 0))

	// Wait for shutdown signal
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("Shutdown signal received, stopping rumd...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		logger.Error("monitor shutdown error", slog.String("error", err.Error()))
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("publisher close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("rumd shutdown complete")
}

// newPublisher returns nil when events are not stored.
func newPublisher(cfg *config.Config, store ports.EventStore, logger *slog.Logger) (ports.EventPublisher, error) {
	if store == nil {
		return nil, nil
	}
	pub, err := direct.NewPublisher(store)
	if err != nil {
		return nil, err
	}
	if !cfg.Pipeline.Async {
		return pub, nil
	}
	return async.NewPublisher(pub, cfg.Pipeline.AsyncBuffer, logger)
}

func traceOutput(target string) (io.Writer, func(), error) {
	switch target {
	case "":
		return nil, func() {}, nil
	case "stdout":
		return os.Stdout, func() {}, nil
	default:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	}
}
