package reference

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/storage"
)

// Preparer normalizes user-supplied reference material into URLs the
// providers can consume. Local file bytes are uploaded to object storage and
// signed; storage-relative keys are signed; absolute URLs pass through.
// Preparation is all-or-nothing: any failure aborts the generation request.
type Preparer struct {
	store   storage.Store
	signTTL time.Duration
	logger  infra.Logger
}

// NewPreparer builds a preparer over the given object store.
func NewPreparer(store storage.Store, signTTL time.Duration, logger infra.Logger) *Preparer {
	return &Preparer{store: store, signTTL: signTTL, logger: logger}
}

// Prepare resolves every reference into one carrying a usable URL, preserving
// order and role tags. No partial result is ever returned.
func (p *Preparer) Prepare(ctx context.Context, ownerID string, refs []domain.Reference) ([]domain.Reference, error) {
	prepared := make([]domain.Reference, 0, len(refs))
	for i, ref := range refs {
		resolved, err := p.prepareOne(ctx, ownerID, ref)
		if err != nil {
			return nil, fmt.Errorf("reference %d (%s): %w", i, ref.Role, err)
		}
		prepared = append(prepared, resolved)
	}
	return prepared, nil
}

func (p *Preparer) prepareOne(ctx context.Context, ownerID string, ref domain.Reference) (domain.Reference, error) {
	switch {
	case len(ref.Data) > 0:
		key := uploadKey(ownerID, ref)
		savedKey, err := p.store.Write(ctx, key, ref.Data, ref.MIME)
		if err != nil {
			return domain.Reference{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
		}
		url, err := p.store.SignURL(ctx, savedKey, p.signTTL)
		if err != nil {
			return domain.Reference{}, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
		}
		ref.StorageKey = savedKey
		ref.URL = url
		ref.Data = nil
		return ref, nil

	case isAbsoluteURL(ref.URL):
		return ref, nil

	case ref.StorageKey != "" || ref.URL != "":
		key := ref.StorageKey
		if key == "" {
			key = ref.URL
		}
		url, err := p.store.SignURL(ctx, key, p.signTTL)
		if err != nil {
			return domain.Reference{}, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
		}
		ref.StorageKey = key
		ref.URL = url
		return ref, nil

	default:
		return domain.Reference{}, fmt.Errorf("%w: empty reference", domain.ErrInvalidRequest)
	}
}

func isAbsoluteURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

func uploadKey(ownerID string, ref domain.Reference) string {
	ext := extensionFor(ref)
	return fmt.Sprintf("references/%s/%s%s", ownerID, uuid.NewString(), ext)
}

func extensionFor(ref domain.Reference) string {
	if ext := strings.ToLower(filepath.Ext(ref.Filename)); ext != "" {
		return ext
	}
	switch strings.ToLower(strings.TrimSpace(ref.MIME)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
