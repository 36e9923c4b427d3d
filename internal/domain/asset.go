package domain

import "time"

// AssetKind enumerates asset types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
	AssetKindFrame AssetKind = "frame"
)

// Asset is the durable output of a completed generation, owned by storage
// and the database. Callers treat it as read-only and merely sign URLs.
type Asset struct {
	ID         string
	JobID      string
	OwnerID    string
	Kind       AssetKind
	StorageKey string
	URL        string
	MIME       string
	Width      int
	Height     int
	Bytes      int64
	SeedUsed   *int64
	Index      int
	CreatedAt  time.Time
}

// GeneratedAsset is returned by providers prior to persistence.
type GeneratedAsset struct {
	Kind       AssetKind
	StorageKey string
	URL        string
	MIME       string
	Width      int
	Height     int
	Bytes      int64
	Data       []byte
	SeedUsed   *int64
}
