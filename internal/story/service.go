package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/orchestrator"
	"scenestudio/internal/providers/chat"
)

// Generator is the slice of the generation pipeline the storyboard needs.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (orchestrator.SubmitResult, error)
}

// Service owns the character/scene/clip hierarchy and roleplay chat. Clip
// generation goes through the same pipeline as the main workspace; the
// storyboard only adds frame chaining on top.
type Service struct {
	repo      domain.StoryRepository
	assets    domain.AssetRepository
	generator Generator
	completer chat.Completer
	logger    infra.Logger
}

// NewService wires the storyboard service. completer may be nil, which
// disables roleplay chat.
func NewService(repo domain.StoryRepository, assets domain.AssetRepository, generator Generator, completer chat.Completer, logger infra.Logger) *Service {
	return &Service{repo: repo, assets: assets, generator: generator, completer: completer, logger: logger}
}

// CreateCharacter persists a new roleplay persona.
func (s *Service) CreateCharacter(ctx context.Context, ownerID, name, persona string, rating domain.ContentRating) (*domain.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: character name is required", domain.ErrInvalidRequest)
	}
	if rating != domain.RatingNSFW {
		rating = domain.RatingSFW
	}
	now := time.Now()
	character := &domain.Character{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Name:          name,
		Persona:       strings.TrimSpace(persona),
		ContentRating: rating,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateCharacter(ctx, character); err != nil {
		return nil, err
	}
	return character, nil
}

// ListCharacters returns the owner's personas.
func (s *Service) ListCharacters(ctx context.Context, ownerID string) ([]domain.Character, error) {
	return s.repo.ListCharacters(ctx, ownerID)
}

// DeleteCharacter removes a persona and everything under it.
func (s *Service) DeleteCharacter(ctx context.Context, ownerID, characterID string) error {
	if _, err := s.characterForOwner(ctx, ownerID, characterID); err != nil {
		return err
	}
	return s.repo.DeleteCharacter(ctx, characterID)
}

// Ownership checks report foreign rows as absent so probing ids reveals
// nothing about other owners' storyboards.
func (s *Service) characterForOwner(ctx context.Context, ownerID, characterID string) (*domain.Character, error) {
	character, err := s.repo.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if character.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return character, nil
}

func (s *Service) sceneForOwner(ctx context.Context, ownerID, sceneID string) (*domain.Scene, error) {
	scene, err := s.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if scene.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return scene, nil
}

func (s *Service) clipForOwner(ctx context.Context, ownerID, clipID string) (*domain.Clip, error) {
	clip, err := s.repo.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	if clip.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return clip, nil
}

// CreateScene adds a scene to a character.
func (s *Service) CreateScene(ctx context.Context, ownerID, characterID, title, direction string) (*domain.Scene, error) {
	if _, err := s.characterForOwner(ctx, ownerID, characterID); err != nil {
		return nil, err
	}
	now := time.Now()
	scene := &domain.Scene{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(title),
		Direction:   strings.TrimSpace(direction),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateScene(ctx, scene); err != nil {
		return nil, err
	}
	return scene, nil
}

// ListScenes returns the owner's scenes for a character.
func (s *Service) ListScenes(ctx context.Context, ownerID, characterID string) ([]domain.Scene, error) {
	if _, err := s.characterForOwner(ctx, ownerID, characterID); err != nil {
		return nil, err
	}
	return s.repo.ListScenes(ctx, characterID)
}

// DeleteScene removes one scene the owner holds.
func (s *Service) DeleteScene(ctx context.Context, ownerID, sceneID string) error {
	if _, err := s.sceneForOwner(ctx, ownerID, sceneID); err != nil {
		return err
	}
	return s.repo.DeleteScene(ctx, sceneID)
}

// ClipRequest describes one new clip.
type ClipRequest struct {
	SceneID         string
	Prompt          string
	ModelID         string
	ParentClipID    string
	DurationSeconds int
	Seed            *int64
	ContentRating   domain.ContentRating
}

// CreateClip submits a video generation for a new clip. When ParentClipID
// is set, the parent's extracted final frame conditions this clip's start so
// visual continuity carries across the sequence.
func (s *Service) CreateClip(ctx context.Context, ownerID string, req ClipRequest) (*domain.Clip, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: clip prompt is required", domain.ErrInvalidRequest)
	}
	if _, err := s.sceneForOwner(ctx, ownerID, req.SceneID); err != nil {
		return nil, err
	}

	var references []domain.Reference
	if req.ParentClipID != "" {
		parent, err := s.clipForOwner(ctx, ownerID, req.ParentClipID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent clip: %w", err)
		}
		if parent.ExtractedFrameKey == "" {
			return nil, fmt.Errorf("%w: parent clip has no extracted frame yet", domain.ErrInvalidRequest)
		}
		references = append(references, domain.Reference{
			Role:       domain.RoleStartFrame,
			StorageKey: parent.ExtractedFrameKey,
		})
	}

	clips, err := s.repo.ListClips(ctx, req.SceneID)
	if err != nil {
		return nil, err
	}

	genReq := domain.GenerationRequest{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Mode:       domain.JobModeVideo,
		Prompt:     req.Prompt,
		References: references,
		ModelID:    req.ModelID,
		Quantity:   1,
		Params: domain.Parameters{
			Seed:            req.Seed,
			DurationSeconds: req.DurationSeconds,
		},
		ContentRating: req.ContentRating,
		CreatedAt:     time.Now(),
	}
	result, err := s.generator.Generate(ctx, genReq)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	clip := &domain.Clip{
		ID:              uuid.NewString(),
		SceneID:         req.SceneID,
		OwnerID:         ownerID,
		Position:        len(clips),
		Prompt:          req.Prompt,
		JobID:           result.JobID,
		ParentClipID:    req.ParentClipID,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateClip(ctx, clip); err != nil {
		return nil, err
	}
	return clip, nil
}

// ListClips returns the owner's clips for a scene in position order.
func (s *Service) ListClips(ctx context.Context, ownerID, sceneID string) ([]domain.Clip, error) {
	if _, err := s.sceneForOwner(ctx, ownerID, sceneID); err != nil {
		return nil, err
	}
	return s.repo.ListClips(ctx, sceneID)
}

// DeleteClip removes one clip the owner holds.
func (s *Service) DeleteClip(ctx context.Context, ownerID, clipID string) error {
	if _, err := s.clipForOwner(ctx, ownerID, clipID); err != nil {
		return err
	}
	return s.repo.DeleteClip(ctx, clipID)
}

// AttachClipResult records a finished clip's video asset and extracted final
// frame. The reconciled job id locates the clip.
func (s *Service) AttachClipResult(ctx context.Context, jobID string) error {
	assets, err := s.assets.ListByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	var videoAssetID, frameKey string
	for _, a := range assets {
		switch a.Kind {
		case domain.AssetKindVideo:
			videoAssetID = a.ID
		case domain.AssetKindFrame:
			frameKey = a.StorageKey
		}
	}
	if videoAssetID == "" {
		return fmt.Errorf("%w: no video asset for job %s", domain.ErrNotFound, jobID)
	}
	clip, err := s.repo.GetClipByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	clip.AssetID = videoAssetID
	clip.ExtractedFrameKey = frameKey
	clip.UpdatedAt = time.Now()
	return s.repo.UpdateClip(ctx, clip)
}

// ReattachPendingClips retries attachment for every clip whose job finished
// while nobody was listening for its completion event. Clips whose jobs have
// not produced a video asset yet are left for the event path.
func (s *Service) ReattachPendingClips(ctx context.Context) error {
	pending, err := s.repo.ListUnattachedClips(ctx)
	if err != nil {
		return err
	}
	for _, clip := range pending {
		if clip.JobID == "" {
			continue
		}
		if err := s.AttachClipResult(ctx, clip.JobID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.logger.Warn().Err(err).Str("clip_id", clip.ID).Str("job_id", clip.JobID).Msg("story: clip reattachment failed")
		}
	}
	return nil
}

// SendChat persists the user's message, asks the completer for the
// character's reply and persists that too.
func (s *Service) SendChat(ctx context.Context, ownerID, characterID, message string) (*domain.ChatMessage, error) {
	if s.completer == nil {
		return nil, fmt.Errorf("%w: chat is not configured", domain.ErrInvalidRequest)
	}
	character, err := s.characterForOwner(ctx, ownerID, characterID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListChatMessages(ctx, characterID, 50)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.ChatMessage{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		OwnerID:     ownerID,
		Role:        "user",
		Content:     strings.TrimSpace(message),
		CreatedAt:   time.Now(),
	}
	if err := s.repo.AppendChatMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, *character, history, message)
	if err != nil {
		return nil, err
	}
	assistantMsg := &domain.ChatMessage{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		OwnerID:     ownerID,
		Role:        "assistant",
		Content:     reply,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.AppendChatMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	return assistantMsg, nil
}

// ListChat returns the owner's most recent messages for a character.
func (s *Service) ListChat(ctx context.Context, ownerID, characterID string, limit int) ([]domain.ChatMessage, error) {
	if _, err := s.characterForOwner(ctx, ownerID, characterID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListChatMessages(ctx, characterID, limit)
}
