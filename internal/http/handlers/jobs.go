package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scenestudio/internal/domain"
)

type jobDTO struct {
	ID        string          `json:"id"`
	Mode      string          `json:"mode"`
	Status    string          `json:"status"`
	ModelID   string          `json:"model_id"`
	Provider  string          `json:"provider"`
	Quantity  int             `json:"quantity"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toJobDTO(job *domain.Job) jobDTO {
	return jobDTO{
		ID:        job.ID,
		Mode:      string(job.Mode),
		Status:    string(job.Status),
		ModelID:   job.ModelID,
		Provider:  string(job.Provider),
		Quantity:  job.Quantity,
		Error:     job.ErrorMessage,
		Result:    json.RawMessage(job.ResultJSON),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
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
	job, err := a.loadJobForUser(r.Context(), jobID, userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, toJobDTO(job))
}

func (a *App) loadJobForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := a.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}
