package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/flowmesh/replayd/internal/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	s := NewStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() {
		assert.NoError(t, s.Stop(ctx))
	})
	return s
}

func testJob(id string) *replay.Job {
	return &replay.Job{
		ID:          id,
		Cluster:     "primary",
		SourceTopic: "orders",
		TargetTopic: "orders-replay",
		Status:      replay.StatusPending,
		CreatedBy:   "ops@example.com",
		CreatedAt:   time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestStoreJobCRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := testJob("job-1")
	require.NoError(t, s.CreateJob(ctx, job))

	// Duplicate IDs are rejected
	assert.Error(t, s.CreateJob(ctx, job))

	loaded, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "orders", loaded.SourceTopic)
	assert.Equal(t, replay.StatusPending, loaded.Status)

	loaded.Status = replay.StatusRunning
	require.NoError(t, s.UpdateJob(ctx, loaded))

	loaded, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, replay.StatusRunning, loaded.Status)

	require.NoError(t, s.DeleteJob(ctx, "job-1"))

	_, err = s.GetJob(ctx, "job-1")
	var notFound replay.JobNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStoreUpdateMissingJob(t *testing.T) {
	s := setupTestStore(t)

	err := s.UpdateJob(context.Background(), testJob("ghost"))
	var notFound replay.JobNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := NewStore(dir)
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.CreateJob(ctx, testJob("job-1")))
	require.NoError(t, s.Stop(ctx))

	s = NewStore(dir)
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	job, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "orders", job.SourceTopic)
}

func TestStoreListJobs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		job := testJob(fmt.Sprintf("job-%d", i))
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			job.Status = replay.StatusCompleted
		}
		require.NoError(t, s.CreateJob(ctx, job))
	}

	// Newest first
	jobs, err := s.ListJobs(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, jobs, 5)
	assert.Equal(t, "job-4", jobs[0].ID)
	assert.Equal(t, "job-0", jobs[4].ID)

	// Status filter
	jobs, err = s.ListJobs(ctx, Query{Status: replay.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	// Created-at window
	from := base.Add(90 * time.Second)
	jobs, err = s.ListJobs(ctx, Query{From: &from})
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	// Pagination
	jobs, err = s.ListJobs(ctx, Query{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-3", jobs[0].ID)
	assert.Equal(t, "job-2", jobs[1].ID)

	// Topic filter
	jobs, err = s.ListJobs(ctx, Query{Topic: "absent"})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStoreHistoryOrderAndPagination(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, testJob("job-1")))

	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	actions := []replay.Action{
		replay.ActionStarted,
		replay.ActionMessageProcessed,
		replay.ActionMessageProcessed,
		replay.ActionCompleted,
	}
	for i, action := range actions {
		require.NoError(t, s.AppendHistory(ctx, &replay.HistoryEntry{
			JobID:     "job-1",
			Action:    action,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := s.ListHistory(ctx, "job-1", HistoryPage{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, replay.ActionStarted, entries[0].Action)
	assert.Equal(t, replay.ActionCompleted, entries[3].Action)

	entries, err = s.ListHistory(ctx, "job-1", HistoryPage{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, replay.ActionMessageProcessed, entries[0].Action)
}

func TestStoreHistoryIsolatedPerJob(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, testJob("job-a")))
	require.NoError(t, s.CreateJob(ctx, testJob("job-ab")))

	now := time.Now()
	require.NoError(t, s.AppendHistory(ctx, &replay.HistoryEntry{JobID: "job-a", Action: replay.ActionStarted, Timestamp: now}))
	require.NoError(t, s.AppendHistory(ctx, &replay.HistoryEntry{JobID: "job-ab", Action: replay.ActionStarted, Timestamp: now}))

	// Prefix scans must not bleed across job IDs that share a prefix
	entries, err := s.ListHistory(ctx, "job-a", HistoryPage{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "job-a", entries[0].JobID)
}

func TestStoreDeleteCascadesHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, testJob("job-1")))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendHistory(ctx, &replay.HistoryEntry{
			JobID:     "job-1",
			Action:    replay.ActionMessageProcessed,
			Timestamp: time.Now(),
		}))
	}

	require.NoError(t, s.DeleteJob(ctx, "job-1"))

	entries, err := s.ListHistory(ctx, "job-1", HistoryPage{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStorePruneHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, testJob("job-1")))

	cutoff := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	for i := -3; i < 3; i++ {
		require.NoError(t, s.AppendHistory(ctx, &replay.HistoryEntry{
			JobID:     "job-1",
			Action:    replay.ActionMessageProcessed,
			Timestamp: cutoff.Add(time.Duration(i) * time.Hour),
		}))
	}

	pruned, err := s.PruneHistory(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	entries, err := s.ListHistory(ctx, "job-1", HistoryPage{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for _, entry := range entries {
		assert.False(t, entry.Timestamp.Before(cutoff))
	}

	// Nothing left to prune
	pruned, err = s.PruneHistory(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestStoreNotReady(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	assert.Error(t, s.CreateJob(ctx, testJob("job-1")))
	_, err := s.GetJob(ctx, "job-1")
	assert.Error(t, err)
	_, err = s.ListJobs(ctx, Query{})
	assert.Error(t, err)
	assert.False(t, s.Ready())
}
