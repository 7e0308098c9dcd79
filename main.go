package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"airnav/notamwatch/config"
	"airnav/notamwatch/database"
	"airnav/notamwatch/ledger"
	"airnav/notamwatch/monitor"
	"airnav/notamwatch/notam"
	"airnav/notamwatch/notam/fieldmap"
	"airnav/notamwatch/snapshot"
	"airnav/notamwatch/upstream"
)

func main() {
	envFile := flag.String("env", "", "optional .env file to load before reading the environment")
	once := flag.Bool("once", false, "run a single cycle per source and exit")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.New(cfg.DatabaseDSN, cfg.ManagementDSN, cfg.DatabaseName)
	if err := db.Connect(ctx); err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("schema setup failed", zap.Error(err))
	}

	mon, err := buildMonitor(cfg, db, log)
	if err != nil {
		log.Fatal("monitor setup failed", zap.Error(err))
	}
	sources := notam.DefaultSources()

	if *once {
		failed := false
		for _, src := range sources {
			window := upstream.LastHours(cfg.LookbackHours)
			if _, err := mon.RunCycle(ctx, src, window); err != nil {
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	scheduler := cron.New()
	for _, src := range sources {
		src := src
		if _, err := scheduler.AddFunc(cfg.CronSpec, func() {
			window := upstream.LastHours(cfg.LookbackHours)
			// RunCycle logs and records its own failures; the scheduler
			// just keeps ticking.
			mon.RunCycle(ctx, src, window) //nolint:errcheck
		}); err != nil {
			log.Fatal("schedule cycle", zap.String("source", src.Code), zap.Error(err))
		}
	}

	log.Info("scheduler started",
		zap.String("cron", cfg.CronSpec),
		zap.Int("sources", len(sources)),
		zap.Int("lookback_hours", cfg.LookbackHours))
	scheduler.Start()

	<-ctx.Done()
	log.Info("shutting down")

	// Let any in-flight cycle finish before closing the pool.
	<-scheduler.Stop().Done()
}

func buildMonitor(cfg config.Configuration, db *database.Database, log *zap.Logger) (*monitor.Monitor, error) {
	table := fieldmap.Default()
	if cfg.FieldMapPath != "" {
		var err error
		if table, err = fieldmap.LoadFile(cfg.FieldMapPath); err != nil {
			return nil, err
		}
	}

	retry := upstream.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Base: cfg.BackoffBase}
	api := upstream.NewHTTPTransport(upstream.HTTPConfig{
		Endpoint:       cfg.APIEndpoint,
		PageSize:       cfg.PageSize,
		PageDelay:      cfg.PageDelay,
		RequestTimeout: cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
		Retry:          retry,
	}, http.DefaultClient, table, log)

	var secondary upstream.Fetcher
	if cfg.PortalURL != "" {
		secondary = upstream.NewBrowserTransport(upstream.BrowserConfig{
			PortalURL: cfg.PortalURL,
			Timeout:   cfg.BrowserTimeout,
			UserAgent: cfg.UserAgent,
		}, table, log)
	}

	selector := upstream.NewSelector(api, secondary, log)
	store := snapshot.NewPostgresStore(db.Pool)
	ldg := ledger.NewPostgresLedger(db.Pool)
	return monitor.New(selector, store, ldg, log), nil
}
