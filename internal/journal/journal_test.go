package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/knyar/urconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	now := time.Now().UTC()
	run := &Run{
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		DryRun:     true,
		Contacts:   urconf.ActionCounts{Created: 2, Deleted: 1},
		Monitors:   urconf.ActionCounts{Updated: 3},
	}
	require.NoError(t, j.Record(ctx, run))
	assert.NotEmpty(t, run.ID, "Record should assign a run id")

	runs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, got.DryRun)
	assert.Equal(t, 2, got.Contacts.Created)
	assert.Equal(t, 1, got.Contacts.Deleted)
	assert.Equal(t, 3, got.Monitors.Updated)
	assert.WithinDuration(t, run.FinishedAt, got.FinishedAt, time.Second)
}

func TestRecentOrderAndLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, &Run{
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}

	runs, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt), "runs should be newest first")
	assert.True(t, runs[1].StartedAt.After(runs[2].StartedAt), "runs should be newest first")
}

func TestRecordError(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, j.Record(ctx, &Run{
		StartedAt:  now,
		FinishedAt: now,
		Err:        "sync contacts: boom",
	}))

	runs, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "sync contacts: boom", runs[0].Err)
}
