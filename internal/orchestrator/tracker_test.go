package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/domain"
)

func TestTrackerOneGroupPerJob(t *testing.T) {
	tr := NewTracker(time.Minute, testLogger())
	tr.Track("job-1", 2, domain.JobModeImage, "m", "p")
	tr.Track("job-1", 2, domain.JobModeImage, "m", "p")

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 2)
	for i, ph := range snapshot {
		assert.Equal(t, "job-1", ph.JobID)
		assert.Equal(t, i, ph.Index)
	}
}

func TestTrackerNewestGroupFirst(t *testing.T) {
	tr := NewTracker(time.Minute, testLogger())
	tr.Track("job-1", 1, domain.JobModeImage, "m", "first")
	tr.Track("job-2", 1, domain.JobModeImage, "m", "second")

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "job-2", snapshot[0].JobID)
	assert.Equal(t, "job-1", snapshot[1].JobID)
}

func TestTrackerUntrackIsIdempotentAndScoped(t *testing.T) {
	tr := NewTracker(time.Minute, testLogger())
	tr.Track("job-1", 1, domain.JobModeImage, "m", "p")
	tr.Track("job-2", 3, domain.JobModeImage, "m", "p")

	tr.Untrack("job-1")
	tr.Untrack("job-1")

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 3)
	for _, ph := range snapshot {
		assert.Equal(t, "job-2", ph.JobID)
	}
}

func TestTrackerReconcileAssetsDropsConfirmedGroups(t *testing.T) {
	tr := NewTracker(time.Minute, testLogger())
	tr.Track("job-1", 1, domain.JobModeImage, "m", "p")
	tr.Track("job-2", 1, domain.JobModeImage, "m", "p")

	tr.ReconcileAssets([]domain.Asset{{ID: "a1", JobID: "job-1"}})

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "job-2", snapshot[0].JobID)
}

func TestTrackerSweepDropsTerminalAndStaleGroups(t *testing.T) {
	tr := NewTracker(10*time.Minute, testLogger())
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.Track("done", 1, domain.JobModeImage, "m", "p")
	tr.Track("stale", 1, domain.JobModeImage, "m", "p")
	tr.Track("live", 1, domain.JobModeImage, "m", "p")

	jobs := newMemJobRepo()
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "done", Status: domain.JobStatusCompleted}))
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "live", Status: domain.JobStatusProcessing}))
	// "stale" has no job row at all; only its age can remove it.

	tr.now = func() time.Time { return now.Add(5 * time.Minute) }
	tr.Sweep(context.Background(), jobs)
	ids := trackedJobIDs(tr)
	assert.NotContains(t, ids, "done")
	assert.Contains(t, ids, "stale")
	assert.Contains(t, ids, "live")

	tr.now = func() time.Time { return now.Add(11 * time.Minute) }
	tr.Sweep(context.Background(), jobs)
	ids = trackedJobIDs(tr)
	assert.NotContains(t, ids, "stale")
	assert.NotContains(t, ids, "live")
}

func trackedJobIDs(tr *Tracker) []string {
	var ids []string
	for _, ph := range tr.Snapshot() {
		ids = append(ids, ph.JobID)
	}
	return ids
}
