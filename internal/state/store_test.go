package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// openTestStore creates a store in a temp directory and closes it with
// the test.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func testRecord(job model.Job) model.RunRecord {
	return model.RunRecord{
		ID:        uuid.NewString(),
		Job:       job,
		Profile:   "default",
		Device:    "127.0.0.1:5555",
		PID:       4242,
		StartedAt: time.Now(),
	}
}

// TestStore_RecordRoundTrip verifies a start/finish pair comes back from
// ListRuns with every field intact.
func TestStore_RecordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord(model.JobNurturing)
	require.NoError(t, s.RecordStart(ctx, rec))

	rec.FinishedAt = rec.StartedAt.Add(90 * time.Minute)
	rec.Duration = 90 * time.Minute
	rec.ExitCode = 0
	rec.Status = model.StatusSucceeded
	rec.OutputTail = "single mode completed\n"
	require.NoError(t, s.RecordFinish(ctx, rec.ID, rec))

	runs, err := s.ListRuns(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, model.JobNurturing, got.Job)
	assert.Equal(t, "default", got.Profile)
	assert.Equal(t, "127.0.0.1:5555", got.Device)
	assert.Equal(t, 4242, got.PID)
	assert.Equal(t, model.StatusSucceeded, got.Status)
	assert.Equal(t, 90*time.Minute, got.Duration)
	assert.Equal(t, "single mode completed\n", got.OutputTail)
	assert.False(t, got.OutputTruncated)
	assert.WithinDuration(t, rec.StartedAt, got.StartedAt, time.Second)
	assert.WithinDuration(t, rec.FinishedAt, got.FinishedAt, time.Second)
}

// TestStore_RecordFinishUnknownID verifies finishing a run that was never
// started is reported instead of silently updating nothing.
func TestStore_RecordFinishUnknownID(t *testing.T) {
	s := openTestStore(t)

	err := s.RecordFinish(context.Background(), uuid.NewString(), model.RunRecord{
		Status: model.StatusFailed,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// TestStore_ListRunsOrderAndLimit verifies newest-first ordering and the
// limit clamp.
func TestStore_ListRunsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		rec := testRecord(model.JobNurturing)
		rec.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.RecordStart(ctx, rec))
		ids = append(ids, rec.ID)
	}

	runs, err := s.ListRuns(ctx, ListFilter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[4], runs[0].ID, "newest run first")
	assert.Equal(t, ids[3], runs[1].ID)
	assert.Equal(t, ids[2], runs[2].ID)
}

// TestStore_ListRunsFilters verifies job and status filtering compose.
func TestStore_ListRunsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	nurturing := testRecord(model.JobNurturing)
	require.NoError(t, s.RecordStart(ctx, nurturing))
	nurturing.Status = model.StatusFailed
	nurturing.ExitCode = 1
	nurturing.FinishedAt = time.Now()
	require.NoError(t, s.RecordFinish(ctx, nurturing.ID, nurturing))

	teamRace := testRecord(model.JobTeamRace)
	require.NoError(t, s.RecordStart(ctx, teamRace))

	runs, err := s.ListRuns(ctx, ListFilter{Job: model.JobTeamRace})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, teamRace.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, ListFilter{Status: model.StatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, nurturing.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, ListFilter{Job: model.JobNurturing, Status: model.StatusRunning})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// TestStore_UpdateCheckRoundTrip verifies the single-row upsert behavior
// of the update bookkeeping.
func TestStore_UpdateCheckRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LastUpdateCheck(ctx)
	require.ErrorIs(t, err, ErrNoUpdateCheck)

	first := time.Now().Add(-time.Hour)
	require.NoError(t, s.SaveUpdateCheck(ctx, "v1.10.0", first))

	check, err := s.LastUpdateCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1.10.0", check.LatestTag)
	assert.WithinDuration(t, first, check.CheckedAt, time.Second)

	second := time.Now()
	require.NoError(t, s.SaveUpdateCheck(ctx, "v1.11.0", second))

	check, err = s.LastUpdateCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1.11.0", check.LatestTag)
	assert.WithinDuration(t, second, check.CheckedAt, time.Second)
}

// TestStore_OpenCreatesDirectory verifies Open builds the parent
// directory chain for a fresh config dir.
func TestStore_OpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}
