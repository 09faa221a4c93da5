// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the persistence layer: idempotent schema migrations, the
// parcel repository with per-band upserts, and the county-scoped percentile
// recomputation. Every pass orchestrator opens a fresh *sql.DB per flush
// rather than holding one open across a batch, because the managed host
// drops connections idle longer than ~60s.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
)

// Open opens a short-lived connection to the DuckDB-backed store at dsn.
// Callers must Close it as soon as their flush completes.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", dsn, err)
	}

	return db, nil
}
