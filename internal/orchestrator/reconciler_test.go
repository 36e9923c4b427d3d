package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/domain"
	"scenestudio/internal/notify"
)

func TestAwaitResolvesFromPreexistingAsset(t *testing.T) {
	jobs := newMemJobRepo()
	assets := newMemAssetRepo()
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing}))
	require.NoError(t, assets.SaveAll(context.Background(), []domain.Asset{{ID: "a1", JobID: "job-1"}}))

	tracker := NewTracker(time.Minute, testLogger())
	tracker.Track("job-1", 1, domain.JobModeImage, "m", "p")

	// An event source that never fires: only the up-front check can resolve
	// within the deadline.
	events := &stubEventSource{ch: make(chan notify.JobEvent)}
	r := NewReconciler(jobs, assets, events, tracker, time.Hour, time.Hour, testLogger())

	outcome, err := r.Await(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, outcome.Status)
	require.Len(t, outcome.Assets, 1)
	assert.Empty(t, tracker.Snapshot())
}

func TestAwaitResolvesFromPushEvent(t *testing.T) {
	jobs := newMemJobRepo()
	assets := newMemAssetRepo()
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing}))

	ch := make(chan notify.JobEvent, 1)
	events := &stubEventSource{ch: ch}
	tracker := NewTracker(time.Minute, testLogger())
	tracker.Track("job-1", 1, domain.JobModeImage, "m", "p")
	r := NewReconciler(jobs, assets, events, tracker, time.Hour, time.Hour, testLogger())

	go func() {
		_ = jobs.UpdateStatus(context.Background(), "job-1", domain.JobStatusFailed, ptr("model refused"), nil)
		ch <- notify.JobEvent{JobID: "job-1", Status: domain.JobStatusFailed, Error: "model refused"}
	}()

	outcome, err := r.Await(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, outcome.Status)
	assert.Equal(t, "model refused", outcome.Error)
	assert.Empty(t, tracker.Snapshot())
}

func TestAwaitFallsBackToPollingWhenSubscribeFails(t *testing.T) {
	jobs := newMemJobRepo()
	assets := newMemAssetRepo()
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing}))

	events := &stubEventSource{err: errors.New("redis down")}
	r := NewReconciler(jobs, assets, events, nil, 10*time.Millisecond, time.Hour, testLogger())

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = jobs.UpdateStatus(context.Background(), "job-1", domain.JobStatusCompleted, nil, nil)
	}()

	outcome, err := r.Await(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, outcome.Status)
}

func TestAwaitTimesOutAndLeavesGroupForSweep(t *testing.T) {
	jobs := newMemJobRepo()
	assets := newMemAssetRepo()
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing}))

	tracker := NewTracker(time.Minute, testLogger())
	tracker.Track("job-1", 1, domain.JobModeImage, "m", "p")
	r := NewReconciler(jobs, assets, nil, tracker, time.Hour, 20*time.Millisecond, testLogger())

	_, err := r.Await(context.Background(), "job-1")
	require.ErrorIs(t, err, ErrReconcileTimeout)
	// Cleanup now belongs to the background sweep, not the reconciler.
	assert.Len(t, tracker.Snapshot(), 1)
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	jobs := newMemJobRepo()
	assets := newMemAssetRepo()
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing}))

	ctx, cancel := context.WithCancel(context.Background())
	r := NewReconciler(jobs, assets, nil, nil, time.Hour, time.Hour, testLogger())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Await(ctx, "job-1")
	require.ErrorIs(t, err, context.Canceled)
}

func ptr(s string) *string { return &s }
