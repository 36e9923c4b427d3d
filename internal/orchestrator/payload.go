package orchestrator

import "scenestudio/internal/domain"

// ProviderPayload is the provider-specific request shape produced by the
// builder. Single-reference providers read ImageURL, multi-reference
// providers read ImageURLs, and the local worker reads the role-named frame
// fields, which external APIs do not accept.
type ProviderPayload struct {
	JobID           string               `json:"job_id"`
	OwnerID         string               `json:"owner_id"`
	Mode            domain.JobMode       `json:"mode"`
	ModelID         string               `json:"model_id"`
	Provider        domain.Provider      `json:"provider"`
	Prompt          string               `json:"prompt"`
	NegativePrompt  string               `json:"negative_prompt,omitempty"`
	Quantity        int                  `json:"quantity"`
	AspectRatio     string               `json:"aspect_ratio,omitempty"`
	Steps           int                  `json:"steps,omitempty"`
	GuidanceScale   float64              `json:"guidance_scale,omitempty"`
	Seed            *int64               `json:"seed,omitempty"`
	Strength        *float64             `json:"strength,omitempty"`
	ImageURL        string               `json:"image_url,omitempty"`
	ImageURLs       []string             `json:"image_urls,omitempty"`
	StartFrameURL   string               `json:"start_frame_url,omitempty"`
	EndFrameURL     string               `json:"end_frame_url,omitempty"`
	StyleURL        string               `json:"style_url,omitempty"`
	DurationSeconds int                  `json:"duration_seconds,omitempty"`
	ContentRating   domain.ContentRating `json:"content_rating"`
}

// HasReferenceImage reports whether any conditioning image made it into the
// payload.
func (p ProviderPayload) HasReferenceImage() bool {
	return p.ImageURL != "" || len(p.ImageURLs) > 0 || p.StartFrameURL != "" || p.EndFrameURL != "" || p.StyleURL != ""
}
