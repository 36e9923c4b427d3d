package handlers

import (
	"encoding/json"
	"net/http"

	"scenestudio/internal/domain"
	"scenestudio/internal/middleware"
)

type settingsDTO struct {
	ImageModelID    string  `json:"image_model_id"`
	VideoModelID    string  `json:"video_model_id"`
	Preservation    float64 `json:"preservation"`
	AspectRatio     string  `json:"aspect_ratio"`
	DurationSeconds int     `json:"duration_seconds"`
	ContentRating   string  `json:"content_rating" validate:"omitempty,oneof=sfw nsfw"`
}

func (a *App) SettingsGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	stored, err := a.Settings.Load(r.Context(), userID, middleware.ClientIP(r))
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusOK, settingsDTO{
		ImageModelID:    stored.ImageModelID,
		VideoModelID:    stored.VideoModelID,
		Preservation:    stored.Preservation,
		AspectRatio:     stored.AspectRatio,
		DurationSeconds: stored.DurationSeconds,
		ContentRating:   string(stored.ContentRating),
	})
}

func (a *App) SettingsPut(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req settingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	next := &domain.WorkspaceSettings{
		OwnerID:         userID,
		ImageModelID:    req.ImageModelID,
		VideoModelID:    req.VideoModelID,
		Preservation:    req.Preservation,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
		ContentRating:   domain.ContentRating(req.ContentRating),
	}
	if err := a.Settings.Save(r.Context(), next); err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusOK, req)
}
