// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"
)

var auditLogger = log.New(os.Stderr, "store/audit: ", log.LstdFlags)

// nowUTC is the clock every upsert stamps rows with; clockOverride pins it
// in tests. Each call reads the clock afresh, so the statements of one
// flush record slightly different timestamps.
var clockOverride func() time.Time

func nowUTC() time.Time {
	if clockOverride != nil {
		return clockOverride()
	}

	return time.Now().UTC()
}

// flushSize is the number of parcels committed per short-lived connection.
// Kept small deliberately: the managed host terminates idle connections,
// and a batch interrupted mid-flush should lose at most one chunk of work.
const flushSize = 100

// WithFlushes opens a fresh connection from dsn for each chunk of items,
// calls fn once per chunk, and closes the connection immediately after.
// It never holds one *sql.DB open across the full slice.
func WithFlushes[T any](ctx context.Context, dsn string, items []T, fn func(ctx context.Context, repo Repository, chunk []T) error) error {
	for start := 0; start < len(items); start += flushSize {
		end := start + flushSize
		if end > len(items) {
			end = len(items)
		}

		if err := flushChunk(ctx, dsn, items[start:end], fn); err != nil {
			return fmt.Errorf("flushing chunk [%d:%d]: %w", start, end, err)
		}
	}

	return nil
}

func flushChunk[T any](ctx context.Context, dsn string, chunk []T, fn func(ctx context.Context, repo Repository, chunk []T) error) error {
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := NewRepository(db)

	return fn(ctx, repo, chunk)
}

// Transact runs fn inside a single transaction against db, committing on
// success and rolling back on any error fn returns.
func Transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
