// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-ai/maestro/internal/accounting"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(modelID string, tokens int, cost, savings float64, at time.Time) accounting.UsageRecord {
	return accounting.UsageRecord{
		ID:                uuid.NewString(),
		ModelID:           modelID,
		TokensUsed:        tokens,
		Cost:              cost,
		SavingsAmount:     savings,
		SavingsPercentage: 90.0,
		ResponseTimeMs:    1200,
		Timestamp:         at,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	store := openTestStore(t)

	n, err := store.Count()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAppendAndCount(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.Append(testRecord("a/cheap", 1000, 0.001, 0.029, now)))
	require.NoError(t, store.Append(testRecord("a/cheap", 2000, 0.002, 0.058, now)))

	n, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAppendDuplicateID(t *testing.T) {
	store := openTestStore(t)
	rec := testRecord("a/cheap", 1000, 0.001, 0.029, time.Now())

	require.NoError(t, store.Append(rec))
	require.Error(t, store.Append(rec), "append-only ledger must reject duplicate ids")
}

func TestSummarize(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.Append(testRecord("a/cheap", 1000, 0.10, 0.90, now)))
	require.NoError(t, store.Append(testRecord("a/cheap", 3000, 0.30, 2.70, now)))
	require.NoError(t, store.Append(testRecord("a/mid", 500, 0.50, 0.25, now)))

	fb := testRecord(accounting.FallbackModelID, 0, 0, 0, now)
	fb.UsedFallback = true
	require.NoError(t, store.Append(fb))

	sum, err := store.Summarize(time.Time{}, time.Time{})
	require.NoError(t, err)

	require.Equal(t, 4, sum.Requests)
	require.Equal(t, 1, sum.FallbackCount)
	require.Equal(t, 4500, sum.Tokens)
	require.InDelta(t, 0.90, sum.TotalCost, 1e-9)
	require.InDelta(t, 3.85, sum.TotalSavings, 1e-9)

	require.Len(t, sum.ByModel, 3)
	// Ordered by cost, highest first.
	require.Equal(t, "a/mid", sum.ByModel[0].ModelID)
	require.Equal(t, "a/cheap", sum.ByModel[1].ModelID)
	require.Equal(t, 2, sum.ByModel[1].Requests)
	require.Equal(t, 4000, sum.ByModel[1].Tokens)
}

func TestSummarizeTimeWindow(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.Append(testRecord("a/cheap", 100, 0.01, 0.09, now.Add(-48*time.Hour))))
	require.NoError(t, store.Append(testRecord("a/cheap", 200, 0.02, 0.18, now)))

	sum, err := store.Summarize(now.Add(-24*time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Requests)
	require.Equal(t, 200, sum.Tokens)
}

// TestSummarizeSubSecondBoundary verifies range queries stay correct when
// timestamps differ only in their fractional seconds. Trimmed-fraction
// formats break here: "…00.5Z" sorts after "…00.52Z" as a string.
func TestSummarizeSubSecondBoundary(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(testRecord("a/cheap", 100, 0.01, 0.09, base.Add(500*time.Millisecond))))
	require.NoError(t, store.Append(testRecord("a/cheap", 200, 0.02, 0.18, base.Add(520*time.Millisecond))))

	// Window starting at .52 must exclude the .5 record.
	sum, err := store.Summarize(base.Add(520*time.Millisecond), time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Requests)
	require.Equal(t, 200, sum.Tokens)

	// Window ending at .5 must exclude the .52 record.
	sum, err = store.Summarize(time.Time{}, base.Add(500*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Requests)
	require.Equal(t, 100, sum.Tokens)
}

func TestDeleteBeforeSubSecondBoundary(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(testRecord("a/cheap", 100, 0.01, 0.09, base.Add(500*time.Millisecond))))
	require.NoError(t, store.Append(testRecord("a/cheap", 200, 0.02, 0.18, base.Add(520*time.Millisecond))))

	deleted, err := store.DeleteBefore(base.Add(520 * time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	sum, err := store.Summarize(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 200, sum.Tokens)
}

func TestDeleteBefore(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.Append(testRecord("a/cheap", 100, 0.01, 0.09, now.Add(-72*time.Hour))))
	require.NoError(t, store.Append(testRecord("a/cheap", 200, 0.02, 0.18, now)))

	deleted, err := store.DeleteBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	n, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(testRecord("a/cheap", 100, 0.01, 0.09, time.Now())))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
