package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

type promptEnhanceRequest struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

// PromptEnhance rewrites a raw prompt into richer variants the client can
// offer as one-tap suggestions.
func (a *App) PromptEnhance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req promptEnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	suggestions, err := a.Enhancer.Enhance(r.Context(), req.Prompt)
	if err != nil {
		a.error(w, http.StatusBadGateway, "enhance_failed", "could not enhance prompt")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
