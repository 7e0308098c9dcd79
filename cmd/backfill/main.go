// Command backfill replays a historical date range through the engine,
// one cycle per day per source. With -dry-run the snapshot and ledger
// live in memory so nothing touches the database.
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

const dayLayout = "2006-01-02"

func main() {
	envFile := flag.String("env", "", "optional .env file to load before reading the environment")
	fromFlag := flag.String("from", "", "first day of the range (YYYY-MM-DD)")
	toFlag := flag.String("to", "", "last day of the range (YYYY-MM-DD, inclusive)")
	sourceFlag := flag.String("source", "", "restrict to one source code (default: all)")
	dryRun := flag.Bool("dry-run", false, "fetch and diff without persisting")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	from, to, err := parseRange(*fromFlag, *toFlag)
	if err != nil {
		log.Fatal("invalid range", zap.Error(err))
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("configuration error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store snapshot.Store
	var ldg ledger.Ledger
	if *dryRun {
		store = snapshot.NewMemoryStore()
		ldg = ledger.NewMemoryLedger()
	} else {
		db := database.New(cfg.DatabaseDSN, cfg.ManagementDSN, cfg.DatabaseName)
		if err := db.Connect(ctx); err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			log.Fatal("schema setup failed", zap.Error(err))
		}
		store = snapshot.NewPostgresStore(db.Pool)
		ldg = ledger.NewPostgresLedger(db.Pool)
	}

	table := fieldmap.Default()
	if cfg.FieldMapPath != "" {
		if table, err = fieldmap.LoadFile(cfg.FieldMapPath); err != nil {
			log.Fatal("field map load failed", zap.Error(err))
		}
	}

	api := upstream.NewHTTPTransport(upstream.HTTPConfig{
		Endpoint:       cfg.APIEndpoint,
		PageSize:       cfg.PageSize,
		PageDelay:      cfg.PageDelay,
		RequestTimeout: cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
		Retry:          upstream.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Base: cfg.BackoffBase},
	}, http.DefaultClient, table, log)

	var secondary upstream.Fetcher
	if cfg.PortalURL != "" {
		secondary = upstream.NewBrowserTransport(upstream.BrowserConfig{
			PortalURL: cfg.PortalURL,
			Timeout:   cfg.BrowserTimeout,
			UserAgent: cfg.UserAgent,
		}, table, log)
	}

	mon := monitor.New(upstream.NewSelector(api, secondary, log), store, ldg, log)

	sources := notam.DefaultSources()
	if *sourceFlag != "" {
		sources = filterSources(sources, *sourceFlag)
		if len(sources) == 0 {
			log.Fatal("unknown source", zap.String("source", *sourceFlag))
		}
	}

	failed := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		window := upstream.Between(day, day.AddDate(0, 0, 1).Add(-time.Minute))
		for _, src := range sources {
			if ctx.Err() != nil {
				log.Warn("backfill interrupted", zap.String("day", day.Format(dayLayout)))
				os.Exit(1)
			}
			result, err := mon.RunCycle(ctx, src, window)
			if err != nil {
				failed++
				continue
			}
			log.Info("day backfilled",
				zap.String("source", src.Code),
				zap.String("day", day.Format(dayLayout)),
				zap.String("batch", result.BatchID.String()),
				zap.Int("fetched", result.Stats.RecordsFetched),
				zap.Int("new", result.Stats.New),
				zap.Int("updated", result.Stats.Updated),
				zap.Int("deleted", result.Stats.Deleted))
		}
	}

	if failed > 0 {
		log.Error("backfill finished with failures", zap.Int("failed_cycles", failed))
		os.Exit(1)
	}
	log.Info("backfill complete")
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-from and -to are required")
	}
	from, err := time.ParseInLocation(dayLayout, fromRaw, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -from: %w", err)
	}
	to, err := time.ParseInLocation(dayLayout, toRaw, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -to: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to precedes -from")
	}
	return from, to, nil
}

func filterSources(sources []notam.Source, code string) []notam.Source {
	var out []notam.Source
	for _, src := range sources {
		if src.Code == code {
			out = append(out, src)
		}
	}
	return out
}
