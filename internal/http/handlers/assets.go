package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"scenestudio/internal/domain"
	"scenestudio/pkg/zip"
)

type assetDTO struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	MIME      string    `json:"mime"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	SeedUsed  *int64    `json:"seed_used,omitempty"`
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`
}

type placeholderDTO struct {
	JobID     string    `json:"job_id"`
	Index     int       `json:"index"`
	Mode      string    `json:"mode"`
	ModelID   string    `json:"model_id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

func toAssetDTO(a domain.Asset) assetDTO {
	return assetDTO{
		ID:        a.ID,
		JobID:     a.JobID,
		Kind:      string(a.Kind),
		URL:       a.URL,
		MIME:      a.MIME,
		Width:     a.Width,
		Height:    a.Height,
		Bytes:     a.Bytes,
		SeedUsed:  a.SeedUsed,
		Index:     a.Index,
		CreatedAt: a.CreatedAt,
	}
}

// ListAssets returns the owner's asset feed with in-flight placeholder
// groups at the head, newest first.
func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	assets, err := a.Assets.ListByOwner(r.Context(), userID, limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}

	// Reconcile against the fetched listing first so a job that just
	// completed is not reported both as pending and as a real asset.
	var placeholders []placeholderDTO
	for _, p := range a.Generator.ReconcilePlaceholders(assets) {
		placeholders = append(placeholders, placeholderDTO{
			JobID:     p.JobID,
			Index:     p.Index,
			Mode:      string(p.Mode),
			ModelID:   p.ModelID,
			Prompt:    p.Prompt,
			CreatedAt: p.CreatedAt,
		})
	}
	items := make([]assetDTO, 0, len(assets))
	for _, asset := range assets {
		items = append(items, toAssetDTO(asset))
	}
	a.json(w, http.StatusOK, map[string]any{
		"pending": placeholders,
		"items":   items,
	})
}

func (a *App) JobAssets(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if _, err := a.loadJobForUser(r.Context(), jobID, userID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	assets, err := a.Assets.ListByJobID(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	items := make([]assetDTO, 0, len(assets))
	for _, asset := range assets {
		items = append(items, toAssetDTO(asset))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// JobZip streams every asset of one finished job as a zip archive.
func (a *App) JobZip(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if _, err := a.loadJobForUser(r.Context(), jobID, userID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	assets, err := a.Assets.ListByJobID(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch assets")
		return
	}
	var entries []zip.Asset
	for _, asset := range assets {
		if asset.StorageKey == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), asset.StorageKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("http: skipping unreadable asset in archive")
			continue
		}
		entries = append(entries, zip.Asset{
			Filename: fmt.Sprintf("%s-%02d%s", jobID, asset.Index, extensionFor(asset.MIME)),
			MIME:     asset.MIME,
			Data:     data,
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no downloadable assets for job")
		return
	}
	archive := zip.ArchiveAssets(entries)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".png"
	}
}
