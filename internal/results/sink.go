package results

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/notify"
	"scenestudio/internal/storage"
)

// Sink persists provider output, finalizes the job record and publishes the
// completion event. The worker and the synchronous submission path share it
// so completion handling exists in exactly one place.
type Sink struct {
	jobs    domain.JobRepository
	assets  domain.AssetRepository
	store   storage.Store
	bus     *notify.Bus
	signTTL time.Duration
	logger  infra.Logger
}

// NewSink wires a result sink. bus may be nil in tests.
func NewSink(jobs domain.JobRepository, assets domain.AssetRepository, store storage.Store, bus *notify.Bus, signTTL time.Duration, logger infra.Logger) *Sink {
	return &Sink{jobs: jobs, assets: assets, store: store, bus: bus, signTTL: signTTL, logger: logger}
}

// Complete stores the generated output, records asset rows, marks the job
// completed and notifies subscribers.
func (s *Sink) Complete(ctx context.Context, job *domain.Job, generated []domain.GeneratedAsset) ([]domain.Asset, error) {
	assets := make([]domain.Asset, 0, len(generated))
	for i, g := range generated {
		asset, err := s.persistOne(ctx, job, g, i)
		if err != nil {
			return nil, fmt.Errorf("persist asset %d: %w", i, err)
		}
		assets = append(assets, asset)
	}
	if err := s.assets.SaveAll(ctx, assets); err != nil {
		return nil, fmt.Errorf("save assets: %w", err)
	}

	result, _ := json.Marshal(map[string]any{"asset_count": len(assets)})
	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, nil, result); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	s.publish(ctx, job, domain.JobStatusCompleted, assets, "")
	return assets, nil
}

// Fail marks the job failed and notifies subscribers. The message is what
// the user will see.
func (s *Sink) Fail(ctx context.Context, job *domain.Job, msg string) error {
	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, &msg, nil); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	s.publish(ctx, job, domain.JobStatusFailed, nil, msg)
	return nil
}

func (s *Sink) persistOne(ctx context.Context, job *domain.Job, g domain.GeneratedAsset, index int) (domain.Asset, error) {
	key := strings.TrimSpace(g.StorageKey)
	if len(g.Data) > 0 {
		if key == "" || strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
			key = defaultKey(job, g, index)
		}
		saved, err := s.store.Write(ctx, key, g.Data, g.MIME)
		if err != nil {
			return domain.Asset{}, err
		}
		key = saved
	}
	url := g.URL
	if key != "" {
		signed, err := s.store.SignURL(ctx, key, s.signTTL)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("results: signing failed, keeping provider url")
		} else {
			url = signed
		}
	}
	size := g.Bytes
	if size == 0 {
		size = int64(len(g.Data))
	}
	return domain.Asset{
		ID:         uuid.NewString(),
		JobID:      job.ID,
		OwnerID:    job.OwnerID,
		Kind:       g.Kind,
		StorageKey: key,
		URL:        url,
		MIME:       g.MIME,
		Width:      g.Width,
		Height:     g.Height,
		Bytes:      size,
		SeedUsed:   g.SeedUsed,
		Index:      index,
		CreatedAt:  time.Now(),
	}, nil
}

func (s *Sink) publish(ctx context.Context, job *domain.Job, status domain.JobStatus, assets []domain.Asset, errMsg string) {
	if s.bus == nil {
		return
	}
	event := notify.JobEvent{
		JobID:   job.ID,
		OwnerID: job.OwnerID,
		Status:  status,
		Error:   errMsg,
		At:      time.Now(),
	}
	for _, a := range assets {
		event.AssetIDs = append(event.AssetIDs, a.ID)
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		// Best-effort: the poll fallback still reconciles.
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("results: completion event publish failed")
	}
}

func defaultKey(job *domain.Job, g domain.GeneratedAsset, index int) string {
	category := "images"
	if g.Kind == domain.AssetKindVideo {
		category = "videos"
	} else if g.Kind == domain.AssetKindFrame {
		category = "frames"
	}
	return fmt.Sprintf("%s/%s/%s-%02d%s", category, job.OwnerID, job.ID, index+1, extensionForMIME(g.MIME))
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
