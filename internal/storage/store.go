package storage

import (
	"context"
	"time"
)

// Store abstracts the object storage the generation pipeline writes assets
// and reference material into. Keys follow the convention
// {category}/{ownerId}/{timestamp-or-id}.{ext}.
type Store interface {
	// Write persists data under key and returns the canonical storage key.
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Read fetches the object bytes for key.
	Read(ctx context.Context, key string) ([]byte, error)
	// SignURL produces an access URL for key, time-limited where the backend
	// supports it.
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
