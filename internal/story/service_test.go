package story

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/orchestrator"
)

func testLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

type memStoryRepo struct {
	mu         sync.Mutex
	characters map[string]domain.Character
	scenes     map[string]domain.Scene
	clips      map[string]domain.Clip
	messages   []domain.ChatMessage
}

func newMemStoryRepo() *memStoryRepo {
	return &memStoryRepo{
		characters: make(map[string]domain.Character),
		scenes:     make(map[string]domain.Scene),
		clips:      make(map[string]domain.Clip),
	}
}

func (m *memStoryRepo) CreateCharacter(_ context.Context, c *domain.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters[c.ID] = *c
	return nil
}

func (m *memStoryRepo) GetCharacter(_ context.Context, id string) (*domain.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.characters[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := c
	return &out, nil
}

func (m *memStoryRepo) ListCharacters(_ context.Context, ownerID string) ([]domain.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Character
	for _, c := range m.characters {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStoryRepo) DeleteCharacter(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.characters, id)
	return nil
}

func (m *memStoryRepo) CreateScene(_ context.Context, s *domain.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes[s.ID] = *s
	return nil
}

func (m *memStoryRepo) GetScene(_ context.Context, id string) (*domain.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *memStoryRepo) ListScenes(_ context.Context, characterID string) ([]domain.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Scene
	for _, s := range m.scenes {
		if s.CharacterID == characterID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStoryRepo) DeleteScene(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scenes, id)
	return nil
}

func (m *memStoryRepo) CreateClip(_ context.Context, c *domain.Clip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips[c.ID] = *c
	return nil
}

func (m *memStoryRepo) UpdateClip(_ context.Context, c *domain.Clip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clips[c.ID]; !ok {
		return domain.ErrNotFound
	}
	m.clips[c.ID] = *c
	return nil
}

func (m *memStoryRepo) GetClip(_ context.Context, id string) (*domain.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clips[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := c
	return &out, nil
}

func (m *memStoryRepo) GetClipByJobID(_ context.Context, jobID string) (*domain.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clips {
		if c.JobID == jobID {
			out := c
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStoryRepo) ListClips(_ context.Context, sceneID string) ([]domain.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Clip
	for _, c := range m.clips {
		if c.SceneID == sceneID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStoryRepo) ListUnattachedClips(_ context.Context) ([]domain.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Clip
	for _, c := range m.clips {
		if c.JobID != "" && c.AssetID == "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStoryRepo) DeleteClip(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clips, id)
	return nil
}

func (m *memStoryRepo) AppendChatMessage(_ context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStoryRepo) ListChatMessages(_ context.Context, characterID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChatMessage
	for _, msg := range m.messages {
		if msg.CharacterID == characterID {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memAssetRepo struct {
	byJob map[string][]domain.Asset
}

func (m *memAssetRepo) SaveAll(_ context.Context, assets []domain.Asset) error {
	for _, a := range assets {
		m.byJob[a.JobID] = append(m.byJob[a.JobID], a)
	}
	return nil
}

func (m *memAssetRepo) ListByJobID(_ context.Context, jobID string) ([]domain.Asset, error) {
	return m.byJob[jobID], nil
}

func (m *memAssetRepo) ListByOwner(_ context.Context, _ string, _ int) ([]domain.Asset, error) {
	return nil, nil
}

func (m *memAssetRepo) GetByID(_ context.Context, _ string) (*domain.Asset, error) {
	return nil, domain.ErrNotFound
}

type stubGenerator struct {
	lastReq domain.GenerationRequest
	result  orchestrator.SubmitResult
	err     error
}

func (s *stubGenerator) Generate(_ context.Context, req domain.GenerationRequest) (orchestrator.SubmitResult, error) {
	s.lastReq = req
	if s.err != nil {
		return orchestrator.SubmitResult{}, s.err
	}
	return s.result, nil
}

type stubCompleter struct {
	reply string
}

func (s *stubCompleter) Complete(_ context.Context, _ domain.Character, _ []domain.ChatMessage, _ string) (string, error) {
	return s.reply, nil
}

func seedScene(t *testing.T, repo *memStoryRepo, ownerID, sceneID string) {
	t.Helper()
	require.NoError(t, repo.CreateScene(context.Background(), &domain.Scene{
		ID: sceneID, CharacterID: "char-" + ownerID, OwnerID: ownerID,
	}))
}

func TestCreateClipChainsParentFrame(t *testing.T) {
	repo := newMemStoryRepo()
	gen := &stubGenerator{result: orchestrator.SubmitResult{JobID: "job-2", Status: domain.JobStatusQueued}}
	svc := NewService(repo, &memAssetRepo{byJob: map[string][]domain.Asset{}}, gen, nil, testLogger())

	seedScene(t, repo, "owner-1", "scene-1")
	parent := domain.Clip{ID: "clip-1", SceneID: "scene-1", OwnerID: "owner-1", JobID: "job-1", ExtractedFrameKey: "frames/owner-1/job-1.png"}
	require.NoError(t, repo.CreateClip(context.Background(), &parent))

	clip, err := svc.CreateClip(context.Background(), "owner-1", ClipRequest{
		SceneID:      "scene-1",
		Prompt:       "she turns toward the window",
		ModelID:      "local-video",
		ParentClipID: "clip-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-2", clip.JobID)
	assert.Equal(t, "clip-1", clip.ParentClipID)

	require.Len(t, gen.lastReq.References, 1)
	assert.Equal(t, domain.RoleStartFrame, gen.lastReq.References[0].Role)
	assert.Equal(t, "frames/owner-1/job-1.png", gen.lastReq.References[0].StorageKey)
	assert.Equal(t, domain.JobModeVideo, gen.lastReq.Mode)
}

func TestCreateClipRequiresExtractedFrame(t *testing.T) {
	repo := newMemStoryRepo()
	gen := &stubGenerator{}
	svc := NewService(repo, &memAssetRepo{byJob: map[string][]domain.Asset{}}, gen, nil, testLogger())

	seedScene(t, repo, "owner-1", "scene-1")
	parent := domain.Clip{ID: "clip-1", SceneID: "scene-1", OwnerID: "owner-1", JobID: "job-1"}
	require.NoError(t, repo.CreateClip(context.Background(), &parent))

	_, err := svc.CreateClip(context.Background(), "owner-1", ClipRequest{
		SceneID:      "scene-1",
		Prompt:       "next shot",
		ParentClipID: "clip-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestAttachClipResultStoresAssetAndFrame(t *testing.T) {
	repo := newMemStoryRepo()
	assets := &memAssetRepo{byJob: map[string][]domain.Asset{
		"job-1": {
			{ID: "vid-1", JobID: "job-1", Kind: domain.AssetKindVideo},
			{ID: "frm-1", JobID: "job-1", Kind: domain.AssetKindFrame, StorageKey: "frames/owner-1/job-1.png"},
		},
	}}
	svc := NewService(repo, assets, &stubGenerator{}, nil, testLogger())

	clip := domain.Clip{ID: "clip-1", SceneID: "scene-1", OwnerID: "owner-1", JobID: "job-1"}
	require.NoError(t, repo.CreateClip(context.Background(), &clip))

	require.NoError(t, svc.AttachClipResult(context.Background(), "job-1"))
	updated, err := repo.GetClip(context.Background(), "clip-1")
	require.NoError(t, err)
	assert.Equal(t, "vid-1", updated.AssetID)
	assert.Equal(t, "frames/owner-1/job-1.png", updated.ExtractedFrameKey)
}

func TestReattachPendingClipsRecoversMissedCompletions(t *testing.T) {
	repo := newMemStoryRepo()
	assets := &memAssetRepo{byJob: map[string][]domain.Asset{
		"job-done": {
			{ID: "vid-1", JobID: "job-done", Kind: domain.AssetKindVideo},
			{ID: "frm-1", JobID: "job-done", Kind: domain.AssetKindFrame, StorageKey: "frames/owner-1/job-done.png"},
		},
	}}
	svc := NewService(repo, assets, &stubGenerator{}, nil, testLogger())

	// One clip whose job finished while no listener was running, one still
	// in flight.
	require.NoError(t, repo.CreateClip(context.Background(), &domain.Clip{
		ID: "clip-done", SceneID: "scene-1", OwnerID: "owner-1", JobID: "job-done",
	}))
	require.NoError(t, repo.CreateClip(context.Background(), &domain.Clip{
		ID: "clip-waiting", SceneID: "scene-1", OwnerID: "owner-1", JobID: "job-waiting",
	}))

	require.NoError(t, svc.ReattachPendingClips(context.Background()))

	attached, err := repo.GetClip(context.Background(), "clip-done")
	require.NoError(t, err)
	assert.Equal(t, "vid-1", attached.AssetID)
	assert.Equal(t, "frames/owner-1/job-done.png", attached.ExtractedFrameKey)

	waiting, err := repo.GetClip(context.Background(), "clip-waiting")
	require.NoError(t, err)
	assert.Empty(t, waiting.AssetID)
}

func TestSendChatPersistsBothSides(t *testing.T) {
	repo := newMemStoryRepo()
	svc := NewService(repo, &memAssetRepo{byJob: map[string][]domain.Asset{}}, &stubGenerator{}, &stubCompleter{reply: "Hello, traveler."}, testLogger())

	character, err := svc.CreateCharacter(context.Background(), "owner-1", "Mira", "a wandering bard", domain.RatingSFW)
	require.NoError(t, err)

	reply, err := svc.SendChat(context.Background(), "owner-1", character.ID, "hi there")
	require.NoError(t, err)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "Hello, traveler.", reply.Content)

	history, err := svc.ListChat(context.Background(), "owner-1", character.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
}

func TestSceneAndClipAccessIsOwnerScoped(t *testing.T) {
	repo := newMemStoryRepo()
	gen := &stubGenerator{result: orchestrator.SubmitResult{JobID: "job-9", Status: domain.JobStatusQueued}}
	svc := NewService(repo, &memAssetRepo{byJob: map[string][]domain.Asset{}}, gen, nil, testLogger())

	seedScene(t, repo, "alice", "scene-a")
	clip := domain.Clip{ID: "clip-a", SceneID: "scene-a", OwnerID: "alice", ExtractedFrameKey: "frames/alice/clip-a.png"}
	require.NoError(t, repo.CreateClip(context.Background(), &clip))

	// Reads and deletes against another owner's rows look like missing rows.
	_, err := svc.ListClips(context.Background(), "bob", "scene-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteScene(context.Background(), "bob", "scene-a"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteClip(context.Background(), "bob", "clip-a"), domain.ErrNotFound)

	// A clip cannot target a foreign scene, nor chain off a foreign clip's
	// frame via its own scene.
	_, err = svc.CreateClip(context.Background(), "bob", ClipRequest{SceneID: "scene-a", Prompt: "steal the shot"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	seedScene(t, repo, "bob", "scene-b")
	_, err = svc.CreateClip(context.Background(), "bob", ClipRequest{SceneID: "scene-b", Prompt: "chain it", ParentClipID: "clip-a"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The real owner is unaffected.
	_, err = svc.ListClips(context.Background(), "alice", "scene-a")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteClip(context.Background(), "alice", "clip-a"))
}

func TestChatHistoryIsOwnerScoped(t *testing.T) {
	repo := newMemStoryRepo()
	svc := NewService(repo, &memAssetRepo{byJob: map[string][]domain.Asset{}}, &stubGenerator{}, &stubCompleter{reply: "hi"}, testLogger())

	character, err := svc.CreateCharacter(context.Background(), "alice", "Mira", "", domain.RatingSFW)
	require.NoError(t, err)
	_, err = svc.SendChat(context.Background(), "alice", character.ID, "secret plans")
	require.NoError(t, err)

	_, err = svc.ListChat(context.Background(), "bob", character.ID, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ListScenes(context.Background(), "bob", character.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendChatRejectsForeignCharacter(t *testing.T) {
	repo := newMemStoryRepo()
	svc := NewService(repo, &memAssetRepo{byJob: map[string][]domain.Asset{}}, &stubGenerator{}, &stubCompleter{reply: "x"}, testLogger())

	character, err := svc.CreateCharacter(context.Background(), "owner-1", "Mira", "", domain.RatingSFW)
	require.NoError(t, err)

	_, err = svc.SendChat(context.Background(), "someone-else", character.ID, "hi")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
