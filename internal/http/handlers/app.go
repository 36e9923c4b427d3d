package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/notify"
	"scenestudio/internal/orchestrator"
	"scenestudio/internal/providers/prompt"
	"scenestudio/internal/settings"
	"scenestudio/internal/storage"
	"scenestudio/internal/story"
)

// App aggregates everything the HTTP handlers touch.
type App struct {
	Generator *orchestrator.Service
	Jobs      domain.JobRepository
	Assets    domain.AssetRepository
	Models    domain.CapabilityRepository
	Resolver  *capability.Resolver
	Settings  *settings.Service
	Story     *story.Service
	Enhancer  prompt.Enhancer
	Hub       *notify.Hub
	Store     storage.Store
	Validate  *validator.Validate
	SignTTL   time.Duration
	Logger    infra.Logger
}

func NewApp() *App {
	return &App{Validate: validator.New(), SignTTL: 15 * time.Minute}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, codeStr, msg string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": codeStr, "message": msg}})
}

// currentUserID extracts the owner identity set by the gateway. Auth proper
// lives in front of this service.
func (a *App) currentUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Owner-ID"))
}

// serviceError translates pipeline and repository errors into API responses.
func (a *App) serviceError(w http.ResponseWriter, err error) {
	var subErr *orchestrator.SubmissionError
	if errors.As(err, &subErr) {
		switch subErr.Kind {
		case orchestrator.KindValidation:
			a.error(w, http.StatusBadRequest, "validation_failed", subErr.Message)
		case orchestrator.KindTransient:
			a.error(w, http.StatusServiceUnavailable, "temporarily_unavailable", subErr.Message)
		default:
			a.error(w, http.StatusBadGateway, "generation_failed", subErr.Message)
		}
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownModel):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("http: unhandled service error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
