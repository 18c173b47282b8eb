// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/orchestra-ai/maestro/internal/accounting"
)

// timeLayout is the stored timestamp format: RFC 3339 UTC with fixed-width
// nanoseconds. Zero-padded fractions keep lexicographic order equal to
// chronological order, which the range queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed usage ledger. Records are append-only; the
// in-memory session metrics remain the accounting source of truth and the
// ledger is the audit trail behind the stats command.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO metadata(key, value) VALUES('schema_version', ?)
		 ON CONFLICT(key) DO NOTHING`, fmt.Sprint(SchemaVersion)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("writing schema version: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the ledger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one usage record. Implements dispatch.Recorder.
func (s *Store) Append(rec accounting.UsageRecord) error {
	fallback := 0
	if rec.UsedFallback {
		fallback = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO usage_records
		   (id, model_id, tokens_used, cost, savings_amount, savings_percentage,
		    response_time_ms, used_fallback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ModelID, rec.TokensUsed, rec.Cost, rec.SavingsAmount,
		rec.SavingsPercentage, rec.ResponseTimeMs, fallback,
		rec.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("appending usage record: %w", err)
	}
	return nil
}

// ModelUsage is the per-model aggregate used by the stats command.
type ModelUsage struct {
	ModelID    string
	Requests   int
	Tokens     int
	Cost       float64
	Savings    float64
	AvgLatency float64
}

// Summary is the ledger-wide aggregate.
type Summary struct {
	Requests      int
	FallbackCount int
	Tokens        int
	TotalCost     float64
	TotalSavings  float64
	ByModel       []ModelUsage
}

// Summarize aggregates all records between from and to (inclusive).
// Zero times mean unbounded.
func (s *Store) Summarize(from, to time.Time) (*Summary, error) {
	where, args := timeRange(from, to)

	sum := &Summary{}
	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(used_fallback), 0),
		        COALESCE(SUM(tokens_used), 0),
		        COALESCE(SUM(cost), 0),
		        COALESCE(SUM(savings_amount), 0)
		   FROM usage_records`+where, args...)
	if err := row.Scan(&sum.Requests, &sum.FallbackCount, &sum.Tokens, &sum.TotalCost, &sum.TotalSavings); err != nil {
		return nil, fmt.Errorf("summarizing ledger: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT model_id, COUNT(*), COALESCE(SUM(tokens_used), 0),
		        COALESCE(SUM(cost), 0), COALESCE(SUM(savings_amount), 0),
		        COALESCE(AVG(response_time_ms), 0)
		   FROM usage_records`+where+`
		  GROUP BY model_id ORDER BY SUM(cost) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("summarizing models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m ModelUsage
		if err := rows.Scan(&m.ModelID, &m.Requests, &m.Tokens, &m.Cost, &m.Savings, &m.AvgLatency); err != nil {
			return nil, fmt.Errorf("scanning model usage: %w", err)
		}
		sum.ByModel = append(sum.ByModel, m)
	}
	return sum, rows.Err()
}

// Count returns the total number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM usage_records`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteBefore removes records created before the given time.
func (s *Store) DeleteBefore(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM usage_records WHERE created_at < ?`,
		before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning ledger: %w", err)
	}
	return res.RowsAffected()
}

// timeRange builds the WHERE clause for an optional time window.
func timeRange(from, to time.Time) (string, []any) {
	switch {
	case from.IsZero() && to.IsZero():
		return "", nil
	case to.IsZero():
		return " WHERE created_at >= ?", []any{from.UTC().Format(timeLayout)}
	case from.IsZero():
		return " WHERE created_at <= ?", []any{to.UTC().Format(timeLayout)}
	default:
		return " WHERE created_at >= ? AND created_at <= ?",
			[]any{from.UTC().Format(timeLayout), to.UTC().Format(timeLayout)}
	}
}
