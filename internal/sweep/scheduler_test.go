package sweep

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/orchestrator"
)

func testLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

type stubCapRepo struct{}

func (stubCapRepo) GetByModelID(context.Context, string) (*domain.Capabilities, error) {
	return nil, domain.ErrNotFound
}

func (stubCapRepo) ListAll(context.Context) ([]domain.Capabilities, error) { return nil, nil }

type memJobs struct {
	jobs map[string]domain.Job
}

func (m *memJobs) Create(_ context.Context, job *domain.Job) error {
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, errMsg *string, _ []byte) error {
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	m.jobs[jobID] = job
	return nil
}

func (m *memJobs) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := job
	return &out, nil
}

func (m *memJobs) ListByIDs(_ context.Context, jobIDs []string) ([]domain.Job, error) {
	var out []domain.Job
	for _, id := range jobIDs {
		if job, ok := m.jobs[id]; ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *memJobs) ListStuck(_ context.Context, cutoff time.Time) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range m.jobs {
		if !job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	return out, nil
}

func TestSweepFailsStuckJobs(t *testing.T) {
	now := time.Now()
	jobs := &memJobs{jobs: map[string]domain.Job{
		"old-queued":     {ID: "old-queued", Status: domain.JobStatusQueued, CreatedAt: now.Add(-time.Hour)},
		"old-processing": {ID: "old-processing", Status: domain.JobStatusProcessing, CreatedAt: now.Add(-time.Hour)},
		"old-done":       {ID: "old-done", Status: domain.JobStatusCompleted, CreatedAt: now.Add(-time.Hour)},
		"fresh":          {ID: "fresh", Status: domain.JobStatusQueued, CreatedAt: now.Add(-time.Second)},
	}}
	tracker := orchestrator.NewTracker(time.Minute, testLogger())
	resolver := capability.NewResolver(stubCapRepo{}, testLogger(), time.Minute)
	s := NewScheduler(tracker, resolver, jobs, time.Second, 5*time.Minute, testLogger())
	s.now = func() time.Time { return now }

	s.sweepTracker()

	for _, id := range []string{"old-queued", "old-processing"} {
		job, err := jobs.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, job.Status, id)
		assert.Equal(t, "generation timed out", job.ErrorMessage, id)
	}

	done, err := jobs.GetByID(context.Background(), "old-done")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)

	fresh, err := jobs.GetByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, fresh.Status)
}
