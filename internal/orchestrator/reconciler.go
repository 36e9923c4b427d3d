package orchestrator

import (
	"context"
	"errors"
	"time"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/notify"
)

// ErrReconcileTimeout is returned when a job reaches no terminal state
// within the bounded subscription window. Tracking cleanup then falls to the
// background sweep.
var ErrReconcileTimeout = errors.New("reconcile wait timed out")

// EventSource is the push half of completion detection. *notify.Bus
// implements it.
type EventSource interface {
	SubscribeJob(ctx context.Context, jobID string) (<-chan notify.JobEvent, func(), error)
}

// Outcome is the terminal result of one reconciled job.
type Outcome struct {
	JobID  string
	Status domain.JobStatus
	Assets []domain.Asset
	Error  string
}

// Reconciler drives each job from SUBMITTED to RECONCILED. Push events and
// polling are two producers feeding the same completion path, and a
// pre-existing asset check runs before subscribing because synchronous
// providers may finish before the subscription is even set up.
type Reconciler struct {
	jobs      domain.JobRepository
	assets    domain.AssetRepository
	events    EventSource
	tracker   *Tracker
	pollEvery time.Duration
	maxWait   time.Duration
	logger    infra.Logger
}

// NewReconciler wires the reconciler. events may be nil, which degrades to
// poll-only operation.
func NewReconciler(jobs domain.JobRepository, assets domain.AssetRepository, events EventSource, tracker *Tracker, pollEvery, maxWait time.Duration, logger infra.Logger) *Reconciler {
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	return &Reconciler{
		jobs:      jobs,
		assets:    assets,
		events:    events,
		tracker:   tracker,
		pollEvery: pollEvery,
		maxWait:   maxWait,
		logger:    logger,
	}
}

// Await blocks until the job reaches a terminal state, the bounded wait
// expires, or ctx is cancelled. On success the placeholder group for the job
// is untracked exactly once.
func (r *Reconciler) Await(ctx context.Context, jobID string) (Outcome, error) {
	var (
		events <-chan notify.JobEvent
		cancel func()
	)
	if r.events != nil {
		var err error
		events, cancel, err = r.events.SubscribeJob(ctx, jobID)
		if err != nil {
			// Non-fatal: polling still gives eventual consistency.
			r.logger.Warn().Err(err).Str("job_id", jobID).
				Msg("reconciler: notification channel unavailable, updates may be delayed")
			events = nil
		}
	}
	if cancel != nil {
		defer cancel()
	}

	// The synchronous-provider race: the result may already exist before the
	// subscription was in place.
	if outcome, ok := r.checkNow(ctx, jobID); ok {
		return r.finish(outcome), nil
	}

	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()
	deadline := time.NewTimer(r.maxWait)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.JobID != jobID || !event.Status.Terminal() {
				continue
			}
			outcome := r.loadOutcome(ctx, jobID, event.Status, event.Error)
			return r.finish(outcome), nil

		case <-ticker.C:
			if outcome, ok := r.checkNow(ctx, jobID); ok {
				return r.finish(outcome), nil
			}

		case <-deadline.C:
			// Abandon the subscription regardless of outcome so navigated-away
			// jobs do not leak resources.
			r.logger.Warn().Str("job_id", jobID).Msg("reconciler: bounded wait expired")
			return Outcome{JobID: jobID}, ErrReconcileTimeout
		}
	}
}

// checkNow performs one poll: terminal job status or an already-written
// asset resolves immediately.
func (r *Reconciler) checkNow(ctx context.Context, jobID string) (Outcome, bool) {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn().Err(err).Str("job_id", jobID).Msg("reconciler: status poll failed")
		}
		return Outcome{}, false
	}
	if job.Status.Terminal() {
		return r.loadOutcome(ctx, jobID, job.Status, job.ErrorMessage), true
	}
	assets, err := r.assets.ListByJobID(ctx, jobID)
	if err == nil && len(assets) > 0 {
		return Outcome{JobID: jobID, Status: domain.JobStatusCompleted, Assets: assets}, true
	}
	return Outcome{}, false
}

func (r *Reconciler) loadOutcome(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) Outcome {
	outcome := Outcome{JobID: jobID, Status: status, Error: errMsg}
	if status == domain.JobStatusCompleted {
		assets, err := r.assets.ListByJobID(ctx, jobID)
		if err != nil {
			r.logger.Warn().Err(err).Str("job_id", jobID).Msg("reconciler: asset fetch failed")
		} else {
			outcome.Assets = assets
		}
	}
	return outcome
}

func (r *Reconciler) finish(outcome Outcome) Outcome {
	if r.tracker != nil {
		r.tracker.Untrack(outcome.JobID)
	}
	return outcome
}
