package capability

import (
	"context"
	"sort"
	"sync"
	"time"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
)

// Resolver answers "what can this model do" from the descriptor table,
// cached in-process with a short TTL. Lookup failure falls back to the
// hard-coded local-worker default so the workspace stays usable when the
// descriptor service is unreachable.
type Resolver struct {
	repo   domain.CapabilityRepository
	logger infra.Logger
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	caps      domain.Capabilities
	fetchedAt time.Time
}

// NewResolver builds a resolver over the descriptor repository.
func NewResolver(repo domain.CapabilityRepository, logger infra.Logger, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		repo:   repo,
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// Resolve returns the capabilities for modelID. On lookup failure it returns
// the conservative local-worker default instead of an error.
func (r *Resolver) Resolve(ctx context.Context, modelID string) domain.Capabilities {
	if caps, ok := r.cached(modelID); ok {
		return caps
	}
	caps, err := r.repo.GetByModelID(ctx, modelID)
	if err != nil {
		r.logger.Warn().Err(err).Str("model_id", modelID).
			Msg("capability: descriptor lookup failed, falling back to local default")
		return domain.DefaultLocalCapabilities()
	}
	r.store(modelID, *caps)
	return *caps
}

// Confirm resolves modelID and repairs the caller's cached provider
// assumption when it has gone stale relative to the descriptor table.
func (r *Resolver) Confirm(ctx context.Context, modelID string, assumed domain.Provider) domain.Capabilities {
	caps := r.Resolve(ctx, modelID)
	if assumed != "" && caps.Provider != assumed {
		r.logger.Warn().
			Str("model_id", modelID).
			Str("assumed_provider", string(assumed)).
			Str("resolved_provider", string(caps.Provider)).
			Msg("capability: cached provider was stale, corrected")
	}
	return caps
}

// FindWithCapacity returns the descriptor with the smallest sufficient
// MaxReferenceImages >= count for the given modality, or ErrCapacityExceeded
// when no model can take that many references.
func (r *Resolver) FindWithCapacity(ctx context.Context, modality domain.JobMode, count int) (domain.Capabilities, error) {
	all, err := r.repo.ListAll(ctx)
	if err != nil {
		return domain.Capabilities{}, err
	}
	var candidates []domain.Capabilities
	for _, caps := range all {
		if caps.Modality == modality && caps.MaxReferenceImages >= count {
			candidates = append(candidates, caps)
		}
	}
	if len(candidates) == 0 {
		return domain.Capabilities{}, domain.ErrCapacityExceeded
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].MaxReferenceImages < candidates[j].MaxReferenceImages
	})
	return candidates[0], nil
}

// Known reports whether modelID exists in the descriptor table. Used to
// validate persisted settings against the current table.
func (r *Resolver) Known(ctx context.Context, modelID string) bool {
	if _, ok := r.cached(modelID); ok {
		return true
	}
	caps, err := r.repo.GetByModelID(ctx, modelID)
	if err != nil {
		return false
	}
	r.store(modelID, *caps)
	return true
}

// Invalidate drops every cached entry. The background sweep calls this so
// descriptor edits take effect within one TTL at worst.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string]cacheEntry)
	r.mu.Unlock()
}

func (r *Resolver) cached(modelID string) (domain.Capabilities, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[modelID]
	if !ok || r.now().Sub(entry.fetchedAt) > r.ttl {
		return domain.Capabilities{}, false
	}
	return entry.caps, true
}

func (r *Resolver) store(modelID string, caps domain.Capabilities) {
	r.mu.Lock()
	r.cache[modelID] = cacheEntry{caps: caps, fetchedAt: r.now()}
	r.mu.Unlock()
}
