package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/notify"
	"scenestudio/internal/settings"
)

type memJobs struct {
	jobs map[string]*domain.Job
}

func newMemJobs() *memJobs { return &memJobs{jobs: make(map[string]*domain.Job)} }

func (m *memJobs) Create(ctx context.Context, job *domain.Job) error {
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memJobs) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultJSON []byte) error {
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
	return nil
}

func (m *memJobs) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *memJobs) ListByIDs(ctx context.Context, jobIDs []string) ([]domain.Job, error) {
	var out []domain.Job
	for _, id := range jobIDs {
		if job, ok := m.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *memJobs) ListStuck(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range m.jobs {
		if !job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type memAssets struct {
	assets []domain.Asset
}

func (m *memAssets) SaveAll(ctx context.Context, assets []domain.Asset) error {
	m.assets = append(m.assets, assets...)
	return nil
}

func (m *memAssets) ListByJobID(ctx context.Context, jobID string) ([]domain.Asset, error) {
	var out []domain.Asset
	for _, a := range m.assets {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *memAssets) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Asset, error) {
	var out []domain.Asset
	for _, a := range m.assets {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAssets) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	for _, a := range m.assets {
		if a.ID == assetID {
			copied := a
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memCaps struct {
	models []domain.Capabilities
}

func (m *memCaps) GetByModelID(ctx context.Context, modelID string) (*domain.Capabilities, error) {
	for _, c := range m.models {
		if c.ModelID == modelID {
			copied := c
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCaps) ListAll(ctx context.Context) ([]domain.Capabilities, error) {
	return append([]domain.Capabilities(nil), m.models...), nil
}

type memSettingsRepo struct {
	stored map[string]*domain.WorkspaceSettings
}

func (m *memSettingsRepo) Get(ctx context.Context, ownerID string) (*domain.WorkspaceSettings, error) {
	s, ok := m.stored[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memSettingsRepo) Put(ctx context.Context, s *domain.WorkspaceSettings) error {
	copied := *s
	m.stored[s.OwnerID] = &copied
	return nil
}

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.objects[key] = data
	return key, nil
}

func (m *memStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *memStore) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://cdn.test/" + key, nil
}

func newTestApp(t *testing.T) (*App, *memJobs, *memAssets, *memStore) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	jobs := newMemJobs()
	assets := &memAssets{}
	caps := &memCaps{models: []domain.Capabilities{
		{ModelID: "local-image", Provider: domain.ProviderLocalWorker, Modality: domain.JobModeImage, Tasks: []domain.Task{domain.TaskTextToImage}, MaxReferenceImages: 2, SupportsSeed: true},
	}}
	store := &memStore{objects: make(map[string][]byte)}
	resolver := capability.NewResolver(caps, logger, time.Minute)
	app := &App{
		Jobs:     jobs,
		Assets:   assets,
		Models:   caps,
		Resolver: resolver,
		Settings: settings.NewService(&memSettingsRepo{stored: make(map[string]*domain.WorkspaceSettings)}, resolver, nil, logger),
		Hub:      notify.NewHub(),
		Store:    store,
		Validate: validator.New(),
		SignTTL:  time.Minute,
		Logger:   logger,
	}
	return app, jobs, assets, store
}

func testRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/models", app.ModelsList)
	r.Route("/v1/jobs/{job_id}", func(r chi.Router) {
		r.Get("/", app.JobStatus)
		r.Get("/assets", app.JobAssets)
		r.Get("/assets.zip", app.JobZip)
	})
	r.Get("/v1/settings", app.SettingsGet)
	r.Put("/v1/settings", app.SettingsPut)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJobStatusRequiresOwner(t *testing.T) {
	app, _, _, _ := newTestApp(t)
	rec := doRequest(t, testRouter(app), http.MethodGet, "/v1/jobs/abc", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJobStatusHidesForeignJobs(t *testing.T) {
	app, jobs, _, _ := newTestApp(t)
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-1", OwnerID: "alice", Status: domain.JobStatusQueued}))

	rec := doRequest(t, testRouter(app), http.MethodGet, "/v1/jobs/job-1", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, testRouter(app), http.MethodGet, "/v1/jobs/job-1", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp jobDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, string(domain.JobStatusQueued), resp.Status)
}

func TestJobAssetsListsInIndexOrder(t *testing.T) {
	app, jobs, assets, _ := newTestApp(t)
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-2", OwnerID: "alice", Status: domain.JobStatusCompleted}))
	require.NoError(t, assets.SaveAll(context.Background(), []domain.Asset{
		{ID: "a2", JobID: "job-2", OwnerID: "alice", Kind: domain.AssetKindImage, Index: 1, URL: "https://cdn.test/a2"},
		{ID: "a1", JobID: "job-2", OwnerID: "alice", Kind: domain.AssetKindImage, Index: 0, URL: "https://cdn.test/a1"},
	}))

	rec := doRequest(t, testRouter(app), http.MethodGet, "/v1/jobs/job-2/assets", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []assetDTO `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "a1", resp.Items[0].ID)
	assert.Equal(t, "a2", resp.Items[1].ID)
}

func TestJobZipStreamsStoredAssets(t *testing.T) {
	app, jobs, assets, store := newTestApp(t)
	require.NoError(t, jobs.Create(context.Background(), &domain.Job{ID: "job-3", OwnerID: "alice", Status: domain.JobStatusCompleted}))
	store.objects["images/alice/job-3-00.png"] = []byte("png-bytes")
	require.NoError(t, assets.SaveAll(context.Background(), []domain.Asset{
		{ID: "a1", JobID: "job-3", OwnerID: "alice", Kind: domain.AssetKindImage, StorageKey: "images/alice/job-3-00.png", MIME: "image/png"},
	}))

	rec := doRequest(t, testRouter(app), http.MethodGet, "/v1/jobs/job-3/assets.zip", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestSettingsRoundTrip(t *testing.T) {
	app, _, _, _ := newTestApp(t)
	router := testRouter(app)

	rec := doRequest(t, router, http.MethodGet, "/v1/settings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var defaults settingsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defaults))
	assert.Equal(t, string(domain.RatingSFW), defaults.ContentRating)

	rec = doRequest(t, router, http.MethodPut, "/v1/settings", "alice", settingsDTO{
		ImageModelID:    "local-image",
		Preservation:    0.4,
		AspectRatio:     "16:9",
		DurationSeconds: 8,
		ContentRating:   string(domain.RatingSFW),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/v1/settings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored settingsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, "local-image", stored.ImageModelID)
	assert.InDelta(t, 0.4, stored.Preservation, 1e-9)
}

func TestSettingsPutRejectsUnknownModel(t *testing.T) {
	app, _, _, _ := newTestApp(t)
	rec := doRequest(t, testRouter(app), http.MethodPut, "/v1/settings", "alice", settingsDTO{
		ImageModelID: "no-such-model",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelsList(t *testing.T) {
	app, _, _, _ := newTestApp(t)
	rec := doRequest(t, testRouter(app), http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []modelDTO `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "local-image", resp.Items[0].ModelID)
	assert.True(t, resp.Items[0].SupportsSeed)
}
