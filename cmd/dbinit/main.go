// Command dbinit provisions the database. By default it applies the
// schema to an existing database; -reset drops and recreates it first.
package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"airnav/notamwatch/config"
	"airnav/notamwatch/database"
)

func main() {
	envFile := flag.String("env", "", "optional .env file to load before reading the environment")
	reset := flag.Bool("reset", false, "drop and recreate the database before applying the schema")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("configuration error", zap.Error(err))
	}

	ctx := context.Background()
	db := database.New(cfg.DatabaseDSN, cfg.ManagementDSN, cfg.DatabaseName)

	if *reset {
		if cfg.ManagementDSN == "" {
			log.Fatal("NOTAM_MANAGEMENT_DSN is required for -reset")
		}
		if err := db.Reset(ctx); err != nil {
			log.Fatal("reset failed", zap.Error(err))
		}
		db.Close()
		log.Info("database reset and schema applied", zap.String("database", cfg.DatabaseName))
		return
	}

	if err := db.Connect(ctx); err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("schema setup failed", zap.Error(err))
	}
	log.Info("schema applied", zap.String("database", cfg.DatabaseName))
}
