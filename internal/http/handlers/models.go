package handlers

import "net/http"

type modelDTO struct {
	ModelID                string   `json:"model_id"`
	Provider               string   `json:"provider"`
	Modality               string   `json:"modality"`
	Tasks                  []string `json:"tasks"`
	RequiresReferenceImage bool     `json:"requires_reference_image"`
	MaxReferenceImages     int      `json:"max_reference_images"`
	SupportsSeed           bool     `json:"supports_seed"`
	SupportsStrength       bool     `json:"supports_strength"`
	MaxDurationSeconds     int      `json:"max_duration_seconds,omitempty"`
}

// ModelsList serves the capability table so clients can gate form controls
// to what the selected model actually supports.
func (a *App) ModelsList(w http.ResponseWriter, r *http.Request) {
	models, err := a.Models.ListAll(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load models")
		return
	}
	items := make([]modelDTO, 0, len(models))
	for _, m := range models {
		tasks := make([]string, 0, len(m.Tasks))
		for _, t := range m.Tasks {
			tasks = append(tasks, string(t))
		}
		items = append(items, modelDTO{
			ModelID:                m.ModelID,
			Provider:               string(m.Provider),
			Modality:               string(m.Modality),
			Tasks:                  tasks,
			RequiresReferenceImage: m.RequiresReferenceImage,
			MaxReferenceImages:     m.MaxReferenceImages,
			SupportsSeed:           m.SupportsSeed,
			SupportsStrength:       m.SupportsStrength,
			MaxDurationSeconds:     m.MaxDurationSeconds,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
