// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

const (
	// SchemaVersion tracks the database schema version for migrations.
	SchemaVersion = 1
)

// SQLite schema for the usage ledger.
const schemaSQL = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Usage records: one row per completed turn, append-only
CREATE TABLE IF NOT EXISTS usage_records (
    id                 TEXT PRIMARY KEY,
    model_id           TEXT NOT NULL,
    tokens_used        INTEGER NOT NULL,
    cost               REAL NOT NULL,
    savings_amount     REAL NOT NULL,
    savings_percentage REAL NOT NULL,
    response_time_ms   INTEGER NOT NULL,
    used_fallback      INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_model ON usage_records(model_id);
CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_records(created_at);
`
