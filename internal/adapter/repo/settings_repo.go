package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenestudio/internal/domain"
)

// SettingsRepositoryPG stores workspace settings as one JSONB blob per
// owner, so adding a form field never needs a migration.
type SettingsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository creates the settings repository.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepositoryPG {
	return &SettingsRepositoryPG{pool: pool}
}

// Get returns the owner's stored settings.
func (r *SettingsRepositoryPG) Get(ctx context.Context, ownerID string) (*domain.WorkspaceSettings, error) {
	query := `
SELECT payload, updated_at
FROM workspace_settings
WHERE owner_id = $1;
`
	row := r.pool.QueryRow(ctx, query, ownerID)
	var (
		payload  []byte
		settings domain.WorkspaceSettings
	)
	if err := row.Scan(&payload, &settings.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &settings); err != nil {
		return nil, err
	}
	settings.OwnerID = ownerID
	return &settings, nil
}

// Put upserts the owner's settings blob.
func (r *SettingsRepositoryPG) Put(ctx context.Context, settings *domain.WorkspaceSettings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	query := `
INSERT INTO workspace_settings (owner_id, payload)
VALUES ($1, $2)
ON CONFLICT (owner_id) DO UPDATE SET
    payload = EXCLUDED.payload,
    updated_at = NOW();
`
	_, err = r.pool.Exec(ctx, query, settings.OwnerID, payload)
	return err
}
