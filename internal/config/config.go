package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gitpulse/gitpulse/pkg/logger"
	"github.com/joho/godotenv"
)

type Config struct {
	Repository     string
	GitHubToken    string
	DBURL          string
	LookbackMonths int
	RunAnalysis    bool
	OutputDir      string
	SyncInterval   string
	RabbitMQURL    string
	ServerPort     string
}

// * LoadConfiguration reads the configuration from the environment (and an
// * optional .env file) and validates it before any network or storage work.
func LoadConfiguration() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Repository:   os.Getenv("GITHUB_REPO"),
		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		DBURL:        os.Getenv("DB_URL"),
		OutputDir:    os.Getenv("OUTPUT_DIR"),
		SyncInterval: os.Getenv("SYNC_INTERVAL"),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		ServerPort:   os.Getenv("SERVER_PORT"),
	}

	if cfg.Repository == "" {
		return nil, errors.New(
			"CONFIG_ERROR",
			"GITHUB_REPO is required",
			"Set GITHUB_REPO to the target repository in owner/name format",
			nil,
			errors.LevelFatal,
		)
	}

	if _, _, err := ParseRepository(cfg.Repository); err != nil {
		return nil, errors.New(
			"CONFIG_ERROR",
			"GITHUB_REPO is malformed",
			err.Error(),
			err,
			errors.LevelFatal,
		)
	}

	if cfg.DBURL == "" {
		return nil, errors.New(
			"CONFIG_ERROR",
			"DB_URL is required",
			"Set DB_URL to the connection string of the commit store",
			nil,
			errors.LevelFatal,
		)
	}

	if cfg.GitHubToken == "" {
		logger.Warn("No GitHub token provided. API rate limits will be restrictive.")
	}

	cfg.LookbackMonths = 6
	if v := os.Getenv("LOOKBACK_MONTHS"); v != "" {
		months, err := strconv.Atoi(v)
		if err != nil || months <= 0 {
			return nil, errors.New(
				"CONFIG_ERROR",
				"LOOKBACK_MONTHS is malformed",
				fmt.Sprintf("LOOKBACK_MONTHS must be a positive integer, got %q", v),
				err,
				errors.LevelFatal,
			)
		}
		cfg.LookbackMonths = months
	}

	cfg.RunAnalysis = true
	if v := strings.ToLower(os.Getenv("RUN_ANALYSIS")); v != "" {
		cfg.RunAnalysis = v == "true" || v == "yes" || v == "1"
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}

	if cfg.SyncInterval == "" {
		cfg.SyncInterval = "1h"
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = ":8081"
	}

	return cfg, nil
}

// * ParseRepository takes a string in the format owner/name and returns the
// * owner and name as two separate strings. If the string does not match
// * the expected format, an error is returned.
func ParseRepository(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository should be in format owner/name")
	}
	return parts[0], parts[1], nil
}
