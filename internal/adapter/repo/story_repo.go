package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenestudio/internal/domain"
)

// StoryRepositoryPG implements domain.StoryRepository.
type StoryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStoryRepository creates the storyboard repository.
func NewStoryRepository(pool *pgxpool.Pool) *StoryRepositoryPG {
	return &StoryRepositoryPG{pool: pool}
}

// CreateCharacter inserts a persona row.
func (r *StoryRepositoryPG) CreateCharacter(ctx context.Context, c *domain.Character) error {
	query := `
INSERT INTO characters (id, owner_id, name, persona, avatar_asset_id, content_rating)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6);
`
	_, err := r.pool.Exec(ctx, query, c.ID, c.OwnerID, c.Name, c.Persona, c.AvatarAssetID, c.ContentRating)
	return err
}

// GetCharacter fetches one persona.
func (r *StoryRepositoryPG) GetCharacter(ctx context.Context, id string) (*domain.Character, error) {
	query := `
SELECT id, owner_id, name, persona, COALESCE(avatar_asset_id, ''), content_rating, created_at, updated_at
FROM characters
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var c domain.Character
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Persona, &c.AvatarAssetID, &c.ContentRating, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCharacters returns the owner's personas, newest first.
func (r *StoryRepositoryPG) ListCharacters(ctx context.Context, ownerID string) ([]domain.Character, error) {
	query := `
SELECT id, owner_id, name, persona, COALESCE(avatar_asset_id, ''), content_rating, created_at, updated_at
FROM characters
WHERE owner_id = $1
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Character
	for rows.Next() {
		var c domain.Character
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Persona, &c.AvatarAssetID, &c.ContentRating, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCharacter removes a persona; scenes, clips and chat cascade in the
// schema.
func (r *StoryRepositoryPG) DeleteCharacter(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM characters WHERE id = $1;`, id)
	return err
}

// CreateScene inserts a scene row.
func (r *StoryRepositoryPG) CreateScene(ctx context.Context, s *domain.Scene) error {
	query := `
INSERT INTO scenes (id, character_id, owner_id, title, direction)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, s.ID, s.CharacterID, s.OwnerID, s.Title, s.Direction)
	return err
}

// GetScene fetches one scene.
func (r *StoryRepositoryPG) GetScene(ctx context.Context, id string) (*domain.Scene, error) {
	query := `
SELECT id, character_id, owner_id, title, direction, created_at, updated_at
FROM scenes
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var s domain.Scene
	if err := row.Scan(&s.ID, &s.CharacterID, &s.OwnerID, &s.Title, &s.Direction, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListScenes returns a character's scenes in creation order.
func (r *StoryRepositoryPG) ListScenes(ctx context.Context, characterID string) ([]domain.Scene, error) {
	query := `
SELECT id, character_id, owner_id, title, direction, created_at, updated_at
FROM scenes
WHERE character_id = $1
ORDER BY created_at;
`
	rows, err := r.pool.Query(ctx, query, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Scene
	for rows.Next() {
		var s domain.Scene
		if err := rows.Scan(&s.ID, &s.CharacterID, &s.OwnerID, &s.Title, &s.Direction, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteScene removes one scene.
func (r *StoryRepositoryPG) DeleteScene(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1;`, id)
	return err
}

// CreateClip inserts a clip row.
func (r *StoryRepositoryPG) CreateClip(ctx context.Context, c *domain.Clip) error {
	query := `
INSERT INTO clips (id, scene_id, owner_id, position, prompt, job_id, asset_id, parent_clip_id, extracted_frame_key, duration_seconds)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		c.ID, c.SceneID, c.OwnerID, c.Position, c.Prompt,
		c.JobID, c.AssetID, c.ParentClipID, c.ExtractedFrameKey, c.DurationSeconds,
	)
	return err
}

// UpdateClip rewrites the mutable clip fields.
func (r *StoryRepositoryPG) UpdateClip(ctx context.Context, c *domain.Clip) error {
	query := `
UPDATE clips
SET asset_id = NULLIF($2, ''),
    extracted_frame_key = $3,
    position = $4,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, c.ID, c.AssetID, c.ExtractedFrameKey, c.Position)
	return err
}

// GetClip fetches one clip.
func (r *StoryRepositoryPG) GetClip(ctx context.Context, id string) (*domain.Clip, error) {
	row := r.pool.QueryRow(ctx, clipSelect+`WHERE id = $1;`, id)
	return scanClip(row)
}

// GetClipByJobID locates the clip spawned by a generation job.
func (r *StoryRepositoryPG) GetClipByJobID(ctx context.Context, jobID string) (*domain.Clip, error) {
	row := r.pool.QueryRow(ctx, clipSelect+`WHERE job_id = $1;`, jobID)
	return scanClip(row)
}

// ListClips returns the scene's clips in position order.
func (r *StoryRepositoryPG) ListClips(ctx context.Context, sceneID string) ([]domain.Clip, error) {
	rows, err := r.pool.Query(ctx, clipSelect+`WHERE scene_id = $1 ORDER BY position;`, sceneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *clip)
	}
	return out, rows.Err()
}

// ListUnattachedClips returns clips that spawned a generation job but have
// no linked video asset yet.
func (r *StoryRepositoryPG) ListUnattachedClips(ctx context.Context) ([]domain.Clip, error) {
	rows, err := r.pool.Query(ctx, clipSelect+`WHERE job_id IS NOT NULL AND asset_id IS NULL;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *clip)
	}
	return out, rows.Err()
}

// DeleteClip removes one clip.
func (r *StoryRepositoryPG) DeleteClip(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM clips WHERE id = $1;`, id)
	return err
}

// AppendChatMessage inserts one chat exchange row.
func (r *StoryRepositoryPG) AppendChatMessage(ctx context.Context, m *domain.ChatMessage) error {
	query := `
INSERT INTO chat_messages (id, character_id, owner_id, role, content)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, m.ID, m.CharacterID, m.OwnerID, m.Role, m.Content)
	return err
}

// ListChatMessages returns the most recent messages in chronological order.
func (r *StoryRepositoryPG) ListChatMessages(ctx context.Context, characterID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, character_id, owner_id, role, content, created_at
FROM (
    SELECT id, character_id, owner_id, role, content, created_at
    FROM chat_messages
    WHERE character_id = $1
    ORDER BY created_at DESC
    LIMIT $2
) recent
ORDER BY created_at;
`
	rows, err := r.pool.Query(ctx, query, characterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.CharacterID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const clipSelect = `
SELECT id, scene_id, owner_id, position, prompt, COALESCE(job_id, ''), COALESCE(asset_id, ''),
       COALESCE(parent_clip_id, ''), extracted_frame_key, duration_seconds, created_at, updated_at
FROM clips
`

func scanClip(row rowScanner) (*domain.Clip, error) {
	var c domain.Clip
	if err := row.Scan(
		&c.ID, &c.SceneID, &c.OwnerID, &c.Position, &c.Prompt,
		&c.JobID, &c.AssetID, &c.ParentClipID, &c.ExtractedFrameKey,
		&c.DurationSeconds, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
