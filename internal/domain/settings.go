package domain

import "time"

// WorkspaceSettings is the per-owner generation form state persisted between
// sessions as a JSON blob. Loaded values are validated against the current
// capability table; stale model choices are replaced by computed defaults.
type WorkspaceSettings struct {
	OwnerID         string        `json:"-"`
	ImageModelID    string        `json:"image_model_id"`
	VideoModelID    string        `json:"video_model_id"`
	Preservation    float64       `json:"preservation"`
	AspectRatio     string        `json:"aspect_ratio"`
	DurationSeconds int           `json:"duration_seconds"`
	ContentRating   ContentRating `json:"content_rating"`
	UpdatedAt       time.Time     `json:"-"`
}
