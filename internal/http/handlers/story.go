package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scenestudio/internal/domain"
	"scenestudio/internal/story"
)

type characterDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Persona       string    `json:"persona"`
	AvatarAssetID string    `json:"avatar_asset_id,omitempty"`
	ContentRating string    `json:"content_rating"`
	CreatedAt     time.Time `json:"created_at"`
}

type sceneDTO struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Title       string    `json:"title"`
	Direction   string    `json:"direction"`
	CreatedAt   time.Time `json:"created_at"`
}

type clipDTO struct {
	ID              string    `json:"id"`
	SceneID         string    `json:"scene_id"`
	Position        int       `json:"position"`
	Prompt          string    `json:"prompt"`
	JobID           string    `json:"job_id"`
	AssetID         string    `json:"asset_id,omitempty"`
	ParentClipID    string    `json:"parent_clip_id,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

type chatMessageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toCharacterDTO(c domain.Character) characterDTO {
	return characterDTO{
		ID:            c.ID,
		Name:          c.Name,
		Persona:       c.Persona,
		AvatarAssetID: c.AvatarAssetID,
		ContentRating: string(c.ContentRating),
		CreatedAt:     c.CreatedAt,
	}
}

func toClipDTO(c domain.Clip) clipDTO {
	return clipDTO{
		ID:              c.ID,
		SceneID:         c.SceneID,
		Position:        c.Position,
		Prompt:          c.Prompt,
		JobID:           c.JobID,
		AssetID:         c.AssetID,
		ParentClipID:    c.ParentClipID,
		DurationSeconds: c.DurationSeconds,
		CreatedAt:       c.CreatedAt,
	}
}

type characterCreateRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Persona       string `json:"persona" validate:"max=4000"`
	ContentRating string `json:"content_rating" validate:"omitempty,oneof=sfw nsfw"`
}

func (a *App) CharactersCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req characterCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	character, err := a.Story.CreateCharacter(r.Context(), userID, req.Name, req.Persona, domain.ContentRating(req.ContentRating))
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusCreated, toCharacterDTO(*character))
}

func (a *App) CharactersList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	characters, err := a.Story.ListCharacters(r.Context(), userID)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	items := make([]characterDTO, 0, len(characters))
	for _, c := range characters {
		items = append(items, toCharacterDTO(c))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CharactersDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Story.DeleteCharacter(r.Context(), userID, chi.URLParam(r, "character_id")); err != nil {
		a.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sceneCreateRequest struct {
	Title     string `json:"title" validate:"max=200"`
	Direction string `json:"direction" validate:"max=4000"`
}

func (a *App) ScenesCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req sceneCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	scene, err := a.Story.CreateScene(r.Context(), userID, chi.URLParam(r, "character_id"), req.Title, req.Direction)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusCreated, sceneDTO{
		ID:          scene.ID,
		CharacterID: scene.CharacterID,
		Title:       scene.Title,
		Direction:   scene.Direction,
		CreatedAt:   scene.CreatedAt,
	})
}

func (a *App) ScenesList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	scenes, err := a.Story.ListScenes(r.Context(), userID, chi.URLParam(r, "character_id"))
	if err != nil {
		a.serviceError(w, err)
		return
	}
	items := make([]sceneDTO, 0, len(scenes))
	for _, s := range scenes {
		items = append(items, sceneDTO{
			ID:          s.ID,
			CharacterID: s.CharacterID,
			Title:       s.Title,
			Direction:   s.Direction,
			CreatedAt:   s.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) ScenesDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Story.DeleteScene(r.Context(), userID, chi.URLParam(r, "scene_id")); err != nil {
		a.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clipCreateRequest struct {
	Prompt          string `json:"prompt" validate:"required"`
	ModelID         string `json:"model_id" validate:"required"`
	ParentClipID    string `json:"parent_clip_id"`
	DurationSeconds int    `json:"duration_seconds" validate:"omitempty,min=0,max=60"`
	Seed            *int64 `json:"seed"`
	ContentRating   string `json:"content_rating" validate:"omitempty,oneof=sfw nsfw"`
}

func (a *App) ClipsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req clipCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	clip, err := a.Story.CreateClip(r.Context(), userID, story.ClipRequest{
		SceneID:         chi.URLParam(r, "scene_id"),
		Prompt:          req.Prompt,
		ModelID:         req.ModelID,
		ParentClipID:    req.ParentClipID,
		DurationSeconds: req.DurationSeconds,
		Seed:            req.Seed,
		ContentRating:   domain.ContentRating(req.ContentRating),
	})
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, toClipDTO(*clip))
}

func (a *App) ClipsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	clips, err := a.Story.ListClips(r.Context(), userID, chi.URLParam(r, "scene_id"))
	if err != nil {
		a.serviceError(w, err)
		return
	}
	items := make([]clipDTO, 0, len(clips))
	for _, c := range clips {
		items = append(items, toClipDTO(c))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) ClipsDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Story.DeleteClip(r.Context(), userID, chi.URLParam(r, "clip_id")); err != nil {
		a.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatSendRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

func (a *App) ChatSend(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	reply, err := a.Story.SendChat(r.Context(), userID, chi.URLParam(r, "character_id"), req.Message)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusOK, chatMessageDTO{
		ID:        reply.ID,
		Role:      reply.Role,
		Content:   reply.Content,
		CreatedAt: reply.CreatedAt,
	})
}

func (a *App) ChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	messages, err := a.Story.ListChat(r.Context(), userID, chi.URLParam(r, "character_id"), 100)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	items := make([]chatMessageDTO, 0, len(messages))
	for _, m := range messages {
		items = append(items, chatMessageDTO{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
