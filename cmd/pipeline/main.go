package main

import (
	"context"
	"flag"
	"os"

	"github.com/gitpulse/gitpulse/internal/analyze"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/db"
	"github.com/gitpulse/gitpulse/internal/github"
	"github.com/gitpulse/gitpulse/internal/load"
	"github.com/gitpulse/gitpulse/internal/service"
	"github.com/gitpulse/gitpulse/internal/transform"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

func main() {
	if os.Getenv("DEBUG") == "true" {
		logger.SetLevel(logger.LevelDebug)
	}

	analyzeOnly := flag.Bool("analyze-only", false, "skip extraction and rerun reports against the existing store")
	flag.Parse()

	// * Load configuration before any network or storage activity
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

	var analyzer *analyze.Analyzer
	if cfg.RunAnalysis || *analyzeOnly {
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

	ctx := context.Background()

	if *analyzeOnly {
		err = pipeline.Analyze(ctx)
	} else {
		err = pipeline.Run(ctx)
	}
	if err != nil {
		logger.Error("Pipeline failed for %s/%s: %v", owner, name, err)
		os.Exit(1)
	}
}
