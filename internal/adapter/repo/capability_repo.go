package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenestudio/internal/domain"
)

// CapabilityRepositoryPG serves the model descriptor table from PostgreSQL.
type CapabilityRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCapabilityRepository creates the descriptor repository.
func NewCapabilityRepository(pool *pgxpool.Pool) *CapabilityRepositoryPG {
	return &CapabilityRepositoryPG{pool: pool}
}

// GetByModelID fetches one model descriptor.
func (r *CapabilityRepositoryPG) GetByModelID(ctx context.Context, modelID string) (*domain.Capabilities, error) {
	query := `
SELECT model_id, provider, modality, tasks, requires_reference_image, max_reference_images,
       supports_seed, supports_strength, max_duration_seconds
FROM model_capabilities
WHERE model_id = $1;
`
	row := r.pool.QueryRow(ctx, query, modelID)
	caps, err := scanCapabilities(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return caps, nil
}

// ListAll returns every model descriptor.
func (r *CapabilityRepositoryPG) ListAll(ctx context.Context) ([]domain.Capabilities, error) {
	query := `
SELECT model_id, provider, modality, tasks, requires_reference_image, max_reference_images,
       supports_seed, supports_strength, max_duration_seconds
FROM model_capabilities
ORDER BY model_id;
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []domain.Capabilities
	for rows.Next() {
		caps, err := scanCapabilities(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, *caps)
	}
	return all, rows.Err()
}

func scanCapabilities(row rowScanner) (*domain.Capabilities, error) {
	var caps domain.Capabilities
	var tasks []string
	if err := row.Scan(
		&caps.ModelID,
		&caps.Provider,
		&caps.Modality,
		&tasks,
		&caps.RequiresReferenceImage,
		&caps.MaxReferenceImages,
		&caps.SupportsSeed,
		&caps.SupportsStrength,
		&caps.MaxDurationSeconds,
	); err != nil {
		return nil, err
	}
	caps.Tasks = make([]domain.Task, len(tasks))
	for i, t := range tasks {
		caps.Tasks[i] = domain.Task(t)
	}
	return &caps, nil
}
