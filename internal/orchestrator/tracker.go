package orchestrator

import (
	"context"
	"sync"
	"time"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
)

// Placeholder is a transient stand-in for an asset that has not been
// confirmed by the backend yet. Each carries the job id it represents and an
// index for batch jobs producing multiple outputs.
type Placeholder struct {
	JobID     string
	Index     int
	Mode      domain.JobMode
	ModelID   string
	Prompt    string
	CreatedAt time.Time
}

// Tracker keeps the optimistic placeholder groups shown at the head of the
// asset list while jobs are in flight. At most one group exists per job id,
// and a group is removed at most once, by reconciliation or by the sweep.
type Tracker struct {
	logger infra.Logger
	maxAge time.Duration

	mu     sync.Mutex
	groups []placeholderGroup

	now func() time.Time
}

type placeholderGroup struct {
	jobID        string
	placeholders []Placeholder
}

// NewTracker builds a tracker pruning groups older than maxAge.
func NewTracker(maxAge time.Duration, logger infra.Logger) *Tracker {
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &Tracker{logger: logger, maxAge: maxAge, now: time.Now}
}

// Track inserts a placeholder group for jobID at the head. Tracking an
// already-tracked job id is a no-op so a request never produces two groups.
func (t *Tracker) Track(jobID string, count int, mode domain.JobMode, modelID, prompt string) {
	if jobID == "" || count <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, g := range t.groups {
		if g.jobID == jobID {
			return
		}
	}
	group := placeholderGroup{jobID: jobID}
	created := t.now()
	for i := 0; i < count; i++ {
		group.placeholders = append(group.placeholders, Placeholder{
			JobID:     jobID,
			Index:     i,
			Mode:      mode,
			ModelID:   modelID,
			Prompt:    prompt,
			CreatedAt: created,
		})
	}
	t.groups = append([]placeholderGroup{group}, t.groups...)
}

// Untrack removes the group for jobID. Removal is idempotent and filtered by
// job id, so untracking one job never drops another job's group.
func (t *Tracker) Untrack(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(jobID)
}

// ReconcileAssets drops every group whose job id now has a real asset in the
// authoritative listing.
func (t *Tracker) ReconcileAssets(assets []domain.Asset) {
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		if a.JobID != "" {
			seen[a.JobID] = true
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.groups[:0]
	for _, g := range t.groups {
		if seen[g.jobID] {
			continue
		}
		kept = append(kept, g)
	}
	t.groups = kept
}

// Sweep queries job status for every tracked id and drops groups whose job
// reached a terminal state, plus groups older than the configured max age.
// This is the poll fallback for providers whose push notifications never
// arrive.
func (t *Tracker) Sweep(ctx context.Context, jobs domain.JobRepository) {
	ids := t.trackedIDs()
	if len(ids) == 0 {
		return
	}
	records, err := jobs.ListByIDs(ctx, ids)
	if err != nil {
		t.logger.Warn().Err(err).Msg("tracker: sweep status query failed")
		records = nil
	}
	terminal := make(map[string]bool)
	for _, j := range records {
		if j.Status.Terminal() {
			terminal[j.ID] = true
		}
	}
	cutoff := t.now().Add(-t.maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.groups[:0]
	for _, g := range t.groups {
		if terminal[g.jobID] {
			continue
		}
		if len(g.placeholders) > 0 && g.placeholders[0].CreatedAt.Before(cutoff) {
			t.logger.Warn().Str("job_id", g.jobID).Msg("tracker: pruned stale placeholder group")
			continue
		}
		kept = append(kept, g)
	}
	t.groups = kept
}

// Snapshot returns all placeholders in display order, newest group first.
func (t *Tracker) Snapshot() []Placeholder {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Placeholder
	for _, g := range t.groups {
		out = append(out, g.placeholders...)
	}
	return out
}

func (t *Tracker) trackedIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.groups))
	for _, g := range t.groups {
		ids = append(ids, g.jobID)
	}
	return ids
}

func (t *Tracker) removeLocked(jobID string) {
	kept := t.groups[:0]
	for _, g := range t.groups {
		if g.jobID == jobID {
			continue
		}
		kept = append(kept, g)
	}
	t.groups = kept
}
