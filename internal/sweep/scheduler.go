package sweep

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/orchestrator"
)

// Scheduler runs the periodic maintenance work: pruning optimistic
// placeholder groups whose jobs finished or went stale, failing jobs the
// worker never finished, and expiring the capability cache so descriptor
// edits take effect.
type Scheduler struct {
	cron     *cron.Cron
	tracker  *orchestrator.Tracker
	resolver *capability.Resolver
	jobs     domain.JobRepository
	logger   infra.Logger

	sweepEvery      time.Duration
	jobMaxAge       time.Duration
	invalidateEvery time.Duration

	now func() time.Time
}

// NewScheduler builds the maintenance scheduler. jobMaxAge bounds how long a
// queued or processing job may live before the sweep fails it; it should
// match the reconciler's maximum wait so clients and the database agree on
// when a job is abandoned.
func NewScheduler(tracker *orchestrator.Tracker, resolver *capability.Resolver, jobs domain.JobRepository, sweepEvery, jobMaxAge time.Duration, logger infra.Logger) *Scheduler {
	if sweepEvery <= 0 {
		sweepEvery = 10 * time.Second
	}
	if jobMaxAge <= 0 {
		jobMaxAge = 5 * time.Minute
	}
	return &Scheduler{
		cron:            cron.New(),
		tracker:         tracker,
		resolver:        resolver,
		jobs:            jobs,
		logger:          logger,
		sweepEvery:      sweepEvery,
		jobMaxAge:       jobMaxAge,
		invalidateEvery: 5 * time.Minute,
		now:             time.Now,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every "+s.sweepEvery.String(), s.sweepTracker); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every "+s.invalidateEvery.String(), s.resolver.Invalidate); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().
		Str("sweep_every", s.sweepEvery.String()).
		Msg("sweep: maintenance scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweepTracker() {
	ctx, cancel := context.WithTimeout(context.Background(), s.sweepEvery)
	defer cancel()
	s.tracker.Sweep(ctx, s.jobs)
	s.failStuckJobs(ctx)
}

// failStuckJobs marks queued or processing jobs older than jobMaxAge as
// failed so orphaned rows reach a terminal state even when both the worker
// and the reconciler lost track of them.
func (s *Scheduler) failStuckJobs(ctx context.Context) {
	cutoff := s.now().Add(-s.jobMaxAge)
	stuck, err := s.jobs.ListStuck(ctx, cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sweep: stuck job query failed")
		return
	}
	for _, job := range stuck {
		msg := "generation timed out"
		if err := s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, &msg, nil); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("sweep: failed to expire stuck job")
			continue
		}
		s.logger.Warn().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("sweep: expired stuck job")
	}
}
