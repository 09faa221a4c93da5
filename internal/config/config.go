// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the process configuration from the environment.
// Everything is env-driven rather than flag-driven since the passes run as
// unattended batch/server processes.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// VacancyAccount holds one carrier-vacancy OAuth credential pair. Multiple
// accounts are addressed by numeric suffix (SENTINEL_VACANCY_CLIENT_ID_2,
// _3, ...), each with independent quota and backoff state.
type VacancyAccount struct {
	Suffix       string // "" for the first account, "2", "3", ... after
	ClientID     string
	ClientSecret string
}

// Config is the fully resolved process configuration.
type Config struct {
	DatabaseDSN string
	UserAgent   string

	AerialBaseURL     string
	AerialCacheDir    string
	FloodBaseURL      string
	HistoricalBaseURL string

	SatelliteClientID        string
	SatelliteClientSecret    string
	SatelliteTokenURL        string
	SatelliteBaseURL         string
	SatelliteFallbackBaseURL string

	HighResToken   string
	HighResBaseURL string

	VacancyAccounts  []VacancyAccount
	VacancyTokenURL  string
	VacancyBaseURL   string
	VacancyDelayMin  time.Duration
	VacancyDelayMax  time.Duration
	VacancyUseTestEP bool

	BrowserMapKey string // front-end only, never used server-side

	ObjectStorageAccessKey string
	ObjectStorageSecretKey string
}

func getenvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return def
}

func getenvDurationSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return time.Duration(n) * time.Second
}

// Load reads the process configuration from the environment. It never
// fails on a missing optional value; callers that require a field for a
// particular pass check it themselves so that, e.g., `pass1` can run with
// no satellite credentials configured at all.
func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{
		DatabaseDSN: getenvDefault("SENTINEL_DATABASE_DSN", "sentinel.duckdb"),
		UserAgent:   getenvDefault("SENTINEL_USER_AGENT", "sentinel/dev (+https://github.com/parceldistress/sentinel)"),

		AerialBaseURL:     getenvDefault("SENTINEL_AERIAL_BASE_URL", "https://naip.imagery.example/v1"),
		AerialCacheDir:    getenvDefault("SENTINEL_AERIAL_CACHE_DIR", ".cache/aerial"),
		FloodBaseURL:      getenvDefault("SENTINEL_FLOOD_BASE_URL", "https://hazards.fema.example/v1"),
		HistoricalBaseURL: getenvDefault("SENTINEL_HISTORICAL_BASE_URL", "https://stac.ndvi-archive.example/v1"),

		SatelliteClientID:        os.Getenv("SENTINEL_SATELLITE_CLIENT_ID"),
		SatelliteClientSecret:    os.Getenv("SENTINEL_SATELLITE_CLIENT_SECRET"),
		SatelliteTokenURL:        getenvDefault("SENTINEL_SATELLITE_TOKEN_URL", "https://services.sentinel-hub.com/oauth/token"),
		SatelliteBaseURL:         getenvDefault("SENTINEL_SATELLITE_BASE_URL", "https://services.sentinel-hub.com/api/v1"),
		SatelliteFallbackBaseURL: getenvDefault("SENTINEL_SATELLITE_FALLBACK_BASE_URL", "https://naip.imagery.example/v1"),

		HighResToken:   os.Getenv("SENTINEL_HIGHRES_TOKEN"),
		HighResBaseURL: getenvDefault("SENTINEL_HIGHRES_BASE_URL", "https://api.planet.example/v1"),

		VacancyTokenURL:  getenvDefault("SENTINEL_VACANCY_TOKEN_URL", "https://api.smarty.com/oauth/token"),
		VacancyBaseURL:   getenvDefault("SENTINEL_VACANCY_BASE_URL", "https://us-street.api.smarty.com"),
		VacancyDelayMin:  getenvDurationSeconds("SENTINEL_VACANCY_DELAY_MIN", 30*time.Second),
		VacancyDelayMax:  getenvDurationSeconds("SENTINEL_VACANCY_DELAY_MAX", 55*time.Second),
		VacancyUseTestEP: os.Getenv("SENTINEL_VACANCY_USE_TEST_ENDPOINT") == "true",

		BrowserMapKey: os.Getenv("SENTINEL_BROWSER_MAP_KEY"),

		ObjectStorageAccessKey: os.Getenv("SENTINEL_OBJECT_STORAGE_ACCESS_KEY"),
		ObjectStorageSecretKey: os.Getenv("SENTINEL_OBJECT_STORAGE_SECRET_KEY"),
	}

	cfg.VacancyAccounts = loadVacancyAccounts()

	if cfg.BrowserMapKey == "" {
		if key, err := resolveBrowserMapKeyFromADC(ctx); err == nil && key != "" {
			cfg.BrowserMapKey = key
		}
		// ADC lookup is best-effort: the browser map key is consumed only
		// by the external dashboard SPA, never by this process itself.
	}

	return cfg, nil
}

func loadVacancyAccounts() []VacancyAccount {
	var accounts []VacancyAccount

	if id := os.Getenv("SENTINEL_VACANCY_CLIENT_ID"); id != "" {
		accounts = append(accounts, VacancyAccount{
			ClientID:     id,
			ClientSecret: os.Getenv("SENTINEL_VACANCY_CLIENT_SECRET"),
		})
	}

	for i := 2; i <= 16; i++ {
		suffix := strconv.Itoa(i)

		id := os.Getenv("SENTINEL_VACANCY_CLIENT_ID_" + suffix)
		if id == "" {
			continue
		}

		accounts = append(accounts, VacancyAccount{
			Suffix:       suffix,
			ClientID:     id,
			ClientSecret: os.Getenv("SENTINEL_VACANCY_CLIENT_SECRET_" + suffix),
		})
	}

	return accounts
}

// Name returns a log-friendly identifier for the account ("default", "2", ...).
func (a VacancyAccount) Name() string {
	if a.Suffix == "" {
		return "default"
	}

	return a.Suffix
}

func (c *Config) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "dsn=%s vacancy_accounts=%d satellite_configured=%v highres_configured=%v",
		c.DatabaseDSN, len(c.VacancyAccounts), c.SatelliteClientID != "", c.HighResToken != "")

	return b.String()
}
