package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopipe/pkg/errors"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	tick := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	l.clock = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return l
}

func TestBatchLifecycle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	id, err := l.Begin(ctx, "run-1", 1, 100, 50)
	require.NoError(t, err)
	require.NoError(t, l.Mark(ctx, id, StatusInserted))
	require.NoError(t, l.Complete(ctx, id, 95, 48))

	entries, err := l.Entries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, 1, e.Batch)
	assert.Equal(t, 100, e.FanRecords)
	assert.Equal(t, 50, e.BoxOfficeRecords)
	assert.Equal(t, StatusRefreshed, e.Status)
	require.NotNil(t, e.FansTotal)
	assert.Equal(t, int64(95), *e.FansTotal)
	assert.Equal(t, int64(48), *e.FactsTotal)
	assert.True(t, e.UpdatedAt.After(e.StartedAt))
}

func TestFailRecordsError(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	id, err := l.Begin(ctx, "run-1", 3, 100, 50)
	require.NoError(t, err)
	require.NoError(t, l.Fail(ctx, id, fmt.Errorf("refresh of DT_DIM_FANS failed")))

	entries, err := l.Entries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Equal(t, "refresh of DT_DIM_FANS failed", entries[0].Error)
	assert.Nil(t, entries[0].FansTotal)
}

func TestUnknownEntry(t *testing.T) {
	l := openTestLedger(t)

	err := l.Mark(context.Background(), 999, StatusInserted)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeLedgerFailed, errors.GetErrorCode(err))
}

func TestRunsAndResume(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	batch, runID, err := l.ResumeBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, batch)
	assert.Empty(t, runID)

	for b := 1; b <= 3; b++ {
		id, err := l.Begin(ctx, "run-a", b, 100, 50)
		require.NoError(t, err)
		require.NoError(t, l.Complete(ctx, id, int64(b*100), int64(b*50)))
	}

	batch, runID, err = l.ResumeBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, batch)
	assert.Equal(t, "run-a", runID)

	for b := 1; b <= 2; b++ {
		id, err := l.Begin(ctx, "run-b", b, 10, 5)
		require.NoError(t, err)
		if b == 1 {
			require.NoError(t, l.Complete(ctx, id, 1, 1))
		} else {
			require.NoError(t, l.Fail(ctx, id, fmt.Errorf("boom")))
		}
	}

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Batches)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, StatusFailed, runs[0].LastStatus)
	assert.Equal(t, "run-a", runs[1].RunID)
	assert.Equal(t, 3, runs[1].LastBatch)
	assert.Equal(t, StatusRefreshed, runs[1].LastStatus)

	batch, runID, err = l.ResumeBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, batch)
	assert.Equal(t, "run-b", runID)
}

func TestPingAndPath(t *testing.T) {
	l := openTestLedger(t)
	assert.NoError(t, l.Ping(context.Background()))
	assert.Equal(t, "ledger.db", filepath.Base(l.Path()))
}
