package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string, resultJSON []byte) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByIDs(ctx context.Context, jobIDs []string) ([]Job, error)
	ListStuck(ctx context.Context, cutoff time.Time) ([]Job, error)
}

// AssetRepository handles persistence for generated assets.
type AssetRepository interface {
	SaveAll(ctx context.Context, assets []Asset) error
	ListByJobID(ctx context.Context, jobID string) ([]Asset, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]Asset, error)
	GetByID(ctx context.Context, assetID string) (*Asset, error)
}

// CapabilityRepository serves the model descriptor table.
type CapabilityRepository interface {
	GetByModelID(ctx context.Context, modelID string) (*Capabilities, error)
	ListAll(ctx context.Context) ([]Capabilities, error)
}

// StoryRepository persists the character/scene/clip hierarchy.
type StoryRepository interface {
	CreateCharacter(ctx context.Context, c *Character) error
	GetCharacter(ctx context.Context, id string) (*Character, error)
	ListCharacters(ctx context.Context, ownerID string) ([]Character, error)
	DeleteCharacter(ctx context.Context, id string) error

	CreateScene(ctx context.Context, s *Scene) error
	GetScene(ctx context.Context, id string) (*Scene, error)
	ListScenes(ctx context.Context, characterID string) ([]Scene, error)
	DeleteScene(ctx context.Context, id string) error

	CreateClip(ctx context.Context, c *Clip) error
	UpdateClip(ctx context.Context, c *Clip) error
	GetClip(ctx context.Context, id string) (*Clip, error)
	GetClipByJobID(ctx context.Context, jobID string) (*Clip, error)
	ListClips(ctx context.Context, sceneID string) ([]Clip, error)
	ListUnattachedClips(ctx context.Context) ([]Clip, error)
	DeleteClip(ctx context.Context, id string) error

	AppendChatMessage(ctx context.Context, m *ChatMessage) error
	ListChatMessages(ctx context.Context, characterID string, limit int) ([]ChatMessage, error)
}

// SettingsRepository stores the persisted workspace settings blob.
type SettingsRepository interface {
	Get(ctx context.Context, ownerID string) (*WorkspaceSettings, error)
	Put(ctx context.Context, settings *WorkspaceSettings) error
}
