package orchestrator

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/notify"
)

func testLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

type stubCapRepo struct {
	byID map[string]domain.Capabilities
	err  error
}

func (s *stubCapRepo) GetByModelID(_ context.Context, modelID string) (*domain.Capabilities, error) {
	if s.err != nil {
		return nil, s.err
	}
	caps, ok := s.byID[modelID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &caps, nil
}

func (s *stubCapRepo) ListAll(_ context.Context) ([]domain.Capabilities, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Capabilities, 0, len(s.byID))
	for _, caps := range s.byID {
		out = append(out, caps)
	}
	return out, nil
}

type memJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]domain.Job
	createErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]domain.Job)}
}

func (m *memJobRepo) Create(_ context.Context, job *domain.Job) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobRepo) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, errMsg *string, resultJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	if resultJSON != nil {
		job.ResultJSON = resultJSON
	}
	m.jobs[jobID] = job
	return nil
}

func (m *memJobRepo) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := job
	return &out, nil
}

func (m *memJobRepo) ListByIDs(_ context.Context, jobIDs []string) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, id := range jobIDs {
		if job, ok := m.jobs[id]; ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *memJobRepo) ListStuck(_ context.Context, cutoff time.Time) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, job := range m.jobs {
		if !job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	return out, nil
}

type memAssetRepo struct {
	mu     sync.Mutex
	byJob  map[string][]domain.Asset
	byID   map[string]domain.Asset
	listEr error
}

func newMemAssetRepo() *memAssetRepo {
	return &memAssetRepo{byJob: make(map[string][]domain.Asset), byID: make(map[string]domain.Asset)}
}

func (m *memAssetRepo) SaveAll(_ context.Context, assets []domain.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assets {
		m.byJob[a.JobID] = append(m.byJob[a.JobID], a)
		m.byID[a.ID] = a
	}
	return nil
}

func (m *memAssetRepo) ListByJobID(_ context.Context, jobID string) ([]domain.Asset, error) {
	if m.listEr != nil {
		return nil, m.listEr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Asset(nil), m.byJob[jobID]...), nil
}

func (m *memAssetRepo) ListByOwner(_ context.Context, ownerID string, limit int) ([]domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Asset
	for _, assets := range m.byJob {
		for _, a := range assets {
			if a.OwnerID == ownerID {
				out = append(out, a)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAssetRepo) GetByID(_ context.Context, assetID string) (*domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[assetID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := a
	return &out, nil
}

type capturingQueue struct {
	mu        sync.Mutex
	published [][]byte
	err       error
}

func (q *capturingQueue) Publish(_ context.Context, body []byte) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, append([]byte(nil), body...))
	return nil
}

type stubInvoker struct {
	assets []domain.GeneratedAsset
	err    error
	calls  int
}

func (s *stubInvoker) Invoke(_ context.Context, _ ProviderPayload) ([]domain.GeneratedAsset, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.assets, nil
}

type recordingSink struct {
	mu        sync.Mutex
	completed []string
	failed    map[string]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{failed: make(map[string]string)}
}

func (s *recordingSink) Complete(_ context.Context, job *domain.Job, generated []domain.GeneratedAsset) ([]domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, job.ID)
	assets := make([]domain.Asset, len(generated))
	for i := range generated {
		assets[i] = domain.Asset{ID: job.ID + "-a", JobID: job.ID, OwnerID: job.OwnerID, Kind: generated[i].Kind}
	}
	return assets, nil
}

func (s *recordingSink) Fail(_ context.Context, job *domain.Job, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[job.ID] = msg
	return nil
}

type stubEventSource struct {
	ch  chan notify.JobEvent
	err error
}

func (s *stubEventSource) SubscribeJob(_ context.Context, _ string) (<-chan notify.JobEvent, func(), error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.ch, func() {}, nil
}
