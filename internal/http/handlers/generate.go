package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"scenestudio/internal/domain"
)

type referenceDTO struct {
	Role       string `json:"role" validate:"omitempty,oneof=source style start-frame end-frame"`
	Filename   string `json:"filename"`
	MIME       string `json:"mime"`
	DataBase64 string `json:"data_base64"`
	StorageKey string `json:"storage_key"`
	URL        string `json:"url" validate:"omitempty,url"`
}

type generateRequest struct {
	Mode            string         `json:"mode" validate:"required,oneof=image video"`
	Prompt          string         `json:"prompt"`
	NegativePrompt  string         `json:"negative_prompt"`
	ModelID         string         `json:"model_id" validate:"required"`
	Quantity        int            `json:"quantity" validate:"omitempty,min=1,max=8"`
	AspectRatio     string         `json:"aspect_ratio"`
	Preservation    *float64       `json:"preservation" validate:"omitempty,min=0,max=1"`
	Seed            *int64         `json:"seed"`
	DurationSeconds int            `json:"duration_seconds" validate:"omitempty,min=0,max=60"`
	ExactCopy       bool           `json:"exact_copy"`
	ContentRating   string         `json:"content_rating" validate:"omitempty,oneof=sfw nsfw"`
	References      []referenceDTO `json:"references" validate:"omitempty,max=8,dive"`
}

type generateResponse struct {
	JobID  string     `json:"job_id"`
	Status string     `json:"status"`
	Assets []assetDTO `json:"assets,omitempty"`
}

func (a *App) GenerateSubmit(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	references, err := decodeReferences(req.References)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	genReq := domain.GenerationRequest{
		ID:         uuid.NewString(),
		OwnerID:    userID,
		Mode:       domain.JobMode(req.Mode),
		Prompt:     req.Prompt,
		References: references,
		ModelID:    req.ModelID,
		Quantity:   req.Quantity,
		Params: domain.Parameters{
			Seed:            req.Seed,
			AspectRatio:     req.AspectRatio,
			DurationSeconds: req.DurationSeconds,
			NegativePrompt:  req.NegativePrompt,
		},
		ContentRating: domain.ContentRating(req.ContentRating),
		ExactCopy:     req.ExactCopy,
		CreatedAt:     time.Now(),
	}
	if req.Preservation != nil {
		genReq.Params.Preservation = *req.Preservation
	}
	if genReq.ContentRating == "" {
		genReq.ContentRating = domain.RatingSFW
	}

	result, err := a.Generator.Generate(r.Context(), genReq)
	if err != nil {
		a.serviceError(w, err)
		return
	}

	resp := generateResponse{JobID: result.JobID, Status: string(result.Status)}
	for _, asset := range result.Assets {
		resp.Assets = append(resp.Assets, toAssetDTO(asset))
	}
	a.json(w, http.StatusAccepted, resp)
}

func decodeReferences(refs []referenceDTO) ([]domain.Reference, error) {
	var out []domain.Reference
	for _, ref := range refs {
		role := domain.ReferenceRole(ref.Role)
		if role == "" {
			role = domain.RoleSource
		}
		var data []byte
		if ref.DataBase64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(ref.DataBase64)
			if err != nil {
				return nil, domain.ErrInvalidRequest
			}
			data = decoded
		}
		out = append(out, domain.Reference{
			Role:       role,
			Filename:   ref.Filename,
			MIME:       ref.MIME,
			Data:       data,
			StorageKey: ref.StorageKey,
			URL:        ref.URL,
		})
	}
	return out, nil
}
