package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/adapters/catalog"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/adapters/sampling"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/config"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/database"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/handlers"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/logging"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/middleware"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("catalog_url", cfg.Services.CatalogURL),
		zap.String("refresh_schedule", cfg.Lineage.RefreshSchedule),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}

	// Repositories
	edgeRepo := repositories.NewLineageEdgeRepository(db)
	pathRepo := repositories.NewLineagePathRepository(db)
	impactRepo := repositories.NewColumnImpactRepository(db)
	assetEdgeRepo := repositories.NewAssetEdgeRepository(db)
	refreshStateRepo := repositories.NewRefreshStateRepository(db)

	// External service clients
	catalogClient := catalog.NewClient(cfg.Services.CatalogURL, logger)
	samplingClient := sampling.NewClient(cfg.Services.SamplingURL, logger)

	// Services
	edgeService := services.NewEdgeService(edgeRepo, refreshStateRepo, logger)
	materializer := services.NewPathMaterializer(edgeRepo, pathRepo, logger)
	aggregator := services.NewImpactAggregator(impactRepo, logger)
	tracer := services.NewLineageTracer(edgeRepo, services.TracerConfig{
		DefaultDepth: cfg.Lineage.DefaultTraceDepth,
		MaxDepth:     cfg.Lineage.MaxTraceDepth,
	}, logger)
	composer := services.NewGraphComposer(edgeRepo, assetEdgeRepo, refreshStateRepo, catalogClient, services.ComposerConfig{
		DefaultDepth: cfg.Lineage.DefaultTraceDepth,
		MaxDepth:     cfg.Lineage.MaxTraceDepth,
		NodeLimit:    cfg.Lineage.GraphNodeLimit,
	}, logger)
	connectionService := services.NewManualConnectionService(edgeRepo, assetEdgeRepo, catalogClient, samplingClient, edgeService, logger)

	scheduler := services.NewRefreshScheduler(materializer, aggregator, logger)
	if err := scheduler.Start(cfg.Lineage.RefreshSchedule); err != nil {
		logger.Fatal("Failed to start refresh scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	// HTTP routes
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewEdgeHandler(edgeService, logger).RegisterRoutes(mux)
	handlers.NewLineageHandler(tracer, composer, aggregator, materializer, scheduler, logger).RegisterRoutes(mux)
	handlers.NewConnectionHandler(connectionService, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting lineage engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Block until interrupted, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
