// Package config loads runtime configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Configuration holds every runtime knob. DSNs and the portal endpoints
// have no sane hardcoded defaults and must come from the environment;
// the tuning values fall back to defaults when unset.
type Configuration struct {
	DatabaseDSN   string
	ManagementDSN string
	DatabaseName  string

	APIEndpoint string
	PortalURL   string
	UserAgent   string

	PageSize       int
	MaxAttempts    int
	BackoffBase    time.Duration
	PageDelay      time.Duration
	RequestTimeout time.Duration
	BrowserTimeout time.Duration

	LookbackHours int
	CronSpec      string
	FieldMapPath  string
}

// Load reads configuration from the environment. When envFile is
// non-empty it is loaded first; a missing file is an error because the
// caller asked for it explicitly.
func Load(envFile string) (Configuration, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Configuration{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Configuration{
		DatabaseDSN:   os.Getenv("NOTAM_DB_DSN"),
		ManagementDSN: os.Getenv("NOTAM_MANAGEMENT_DSN"),
		DatabaseName:  envOr("NOTAM_DB_NAME", "notamwatch"),
		APIEndpoint:   os.Getenv("NOTAM_API_ENDPOINT"),
		PortalURL:     os.Getenv("NOTAM_PORTAL_URL"),
		UserAgent:     os.Getenv("NOTAM_USER_AGENT"),
		CronSpec:      envOr("NOTAM_CRON_SPEC", "*/10 * * * *"),
		FieldMapPath:  os.Getenv("NOTAM_FIELD_MAP"),
	}

	if cfg.DatabaseDSN == "" {
		return Configuration{}, fmt.Errorf("NOTAM_DB_DSN is required")
	}
	if cfg.APIEndpoint == "" {
		return Configuration{}, fmt.Errorf("NOTAM_API_ENDPOINT is required")
	}

	var err error
	if cfg.PageSize, err = envInt("NOTAM_PAGE_SIZE", 100); err != nil {
		return Configuration{}, err
	}
	if cfg.MaxAttempts, err = envInt("NOTAM_MAX_ATTEMPTS", 3); err != nil {
		return Configuration{}, err
	}
	if cfg.LookbackHours, err = envInt("NOTAM_LOOKBACK_HOURS", 24); err != nil {
		return Configuration{}, err
	}
	if cfg.BackoffBase, err = envDuration("NOTAM_BACKOFF_BASE", 2*time.Second); err != nil {
		return Configuration{}, err
	}
	if cfg.PageDelay, err = envDuration("NOTAM_PAGE_DELAY", 500*time.Millisecond); err != nil {
		return Configuration{}, err
	}
	if cfg.RequestTimeout, err = envDuration("NOTAM_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Configuration{}, err
	}
	if cfg.BrowserTimeout, err = envDuration("NOTAM_BROWSER_TIMEOUT", 2*time.Minute); err != nil {
		return Configuration{}, err
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}
