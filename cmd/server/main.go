package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gitpulse/gitpulse/internal/analyze"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/db"
	"github.com/gitpulse/gitpulse/internal/github"
	"github.com/gitpulse/gitpulse/internal/handler"
	"github.com/gitpulse/gitpulse/internal/load"
	md "github.com/gitpulse/gitpulse/internal/middleware"
	"github.com/gitpulse/gitpulse/internal/queue"
	"github.com/gitpulse/gitpulse/internal/service"
	"github.com/gitpulse/gitpulse/internal/transform"
	"github.com/gitpulse/gitpulse/internal/worker"
	"github.com/gitpulse/gitpulse/pkg/logger"
	"github.com/gorilla/mux"
)

func main() {
	if os.Getenv("DEBUG") == "true" {
		logger.SetLevel(logger.LevelDebug)
	}

	// * Load configuration
	cfg, err := config.LoadConfiguration()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	owner, name, err := config.ParseRepository(cfg.Repository)
	if err != nil {
		logger.Error("Invalid repository format: %v", err)
		os.Exit(1)
	}

	// * Initialize PostgreSQL database
	database, err := db.NewPostgresDB(cfg.DBURL)
	if err != nil {
		logger.Error("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer database.Close()

	// * Run migrations
	if err := database.Migrate(); err != nil {
		logger.Error("Failed to run migrations: %v", err)
		os.Exit(1)
	}
	logger.Info("Successfully ran migrations")

	var analyzer *analyze.Analyzer
	if cfg.RunAnalysis {
		analyzer = analyze.New(database, cfg.OutputDir)
	}

	pipeline := service.NewPipeline(
		github.NewClient(cfg.GitHubToken),
		transform.New(),
		load.New(database),
		analyzer,
		owner, name,
		cfg.LookbackMonths,
	)

	// * Parse sync interval
	syncInterval, err := time.ParseDuration(cfg.SyncInterval)
	if err != nil {
		logger.Error("Invalid sync interval: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// * Create and start scheduled worker
	syncWorker := worker.NewSyncWorker(pipeline, syncInterval)
	go syncWorker.Run(ctx)

	// * Queue-driven sync triggers are optional
	var publisher handler.SyncPublisher
	if cfg.RabbitMQURL != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("Failed to initialize RabbitMQ: %v", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		publisher = rabbitMQ

		err = rabbitMQ.ConsumeSyncRequests(ctx, func(req queue.SyncRequest) error {
			if req.Owner != owner || req.Repo != name {
				logger.Warn("Ignoring sync request for unconfigured repository %s/%s", req.Owner, req.Repo)
				return nil
			}
			return pipeline.Run(ctx)
		})
		if err != nil {
			logger.Error("Failed to consume sync requests: %v", err)
			os.Exit(1)
		}
	}

	// * Create API server
	apiHandler := handler.NewReportsHandler(database, publisher, owner, name)
	router := mux.NewRouter()
	router.Use(md.LoggingMiddleware)
	api := router.PathPrefix("/v1").Subrouter()
	apiHandler.RegisterRoutes(api)

	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	go func() {
		logger.Info("Starting API server on %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server error: %v", err)
			os.Exit(1)
		}
	}()

	// * Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error: %v", err)
	}
}
