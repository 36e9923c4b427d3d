package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenestudio/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates an asset repository backed by PostgreSQL.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// SaveAll inserts asset rows in one transaction so a batch appears
// atomically or not at all.
func (r *AssetRepositoryPG) SaveAll(ctx context.Context, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
INSERT INTO assets (id, job_id, owner_id, kind, storage_key, url, mime, width, height, bytes, seed_used, idx)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	for _, a := range assets {
		if _, err := tx.Exec(ctx, query,
			a.ID, a.JobID, a.OwnerID, a.Kind, a.StorageKey, a.URL,
			a.MIME, a.Width, a.Height, a.Bytes, a.SeedUsed, a.Index,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListByJobID returns a job's assets ordered by batch index.
func (r *AssetRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.Asset, error) {
	query := `
SELECT id, job_id, owner_id, kind, storage_key, url, mime, width, height, bytes, seed_used, idx, created_at
FROM assets
WHERE job_id = $1
ORDER BY idx;
`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssets(rows)
}

// ListByOwner returns the owner's confirmed assets, newest first.
func (r *AssetRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Asset, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, job_id, owner_id, kind, storage_key, url, mime, width, height, bytes, seed_used, idx, created_at
FROM assets
WHERE owner_id = $1
ORDER BY created_at DESC, idx
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssets(rows)
}

// GetByID fetches one asset.
func (r *AssetRepositoryPG) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	query := `
SELECT id, job_id, owner_id, kind, storage_key, url, mime, width, height, bytes, seed_used, idx, created_at
FROM assets
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, assetID)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return asset, nil
}

func collectAssets(rows pgx.Rows) ([]domain.Asset, error) {
	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var a domain.Asset
	if err := row.Scan(
		&a.ID,
		&a.JobID,
		&a.OwnerID,
		&a.Kind,
		&a.StorageKey,
		&a.URL,
		&a.MIME,
		&a.Width,
		&a.Height,
		&a.Bytes,
		&a.SeedUsed,
		&a.Index,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
