package main

import (
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LeviWoodfall/Regia/internal/api"
	"github.com/LeviWoodfall/Regia/internal/cli"
	"github.com/LeviWoodfall/Regia/internal/config"
	"github.com/LeviWoodfall/Regia/internal/database"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Ensure data and storage directories exist
	if err := ensureDirs(cfg); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	// Initialize database
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg, logger)
		return
	}

	// Start API server
	router := api.SetupRouter(db, cfg, logger)

	logger.WithFields(logrus.Fields{
		"port":    cfg.APIPort,
		"db":      cfg.DatabasePath,
		"storage": cfg.Storage.BaseDir,
	}).Info("starting Regia server")

	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// ensureDirs creates the data and document storage directories
func ensureDirs(cfg *config.Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.Storage.BaseDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
