package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"scenestudio/internal/http/handlers"
	"scenestudio/internal/middleware"
)

// Options tunes the router's cross-cutting middleware.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
	)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/generate", app.GenerateSubmit)
		r.Post("/prompts/enhance", app.PromptEnhance)
		r.Get("/models", app.ModelsList)
		r.Get("/events", app.Events)

		r.Route("/jobs/{job_id}", func(r chi.Router) {
			r.Get("/", app.JobStatus)
			r.Get("/assets", app.JobAssets)
			r.Get("/assets.zip", app.JobZip)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", app.ListAssets)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", app.SettingsGet)
			r.Put("/", app.SettingsPut)
		})

		r.Route("/characters", func(r chi.Router) {
			r.Post("/", app.CharactersCreate)
			r.Get("/", app.CharactersList)
			r.Route("/{character_id}", func(r chi.Router) {
				r.Delete("/", app.CharactersDelete)
				r.Post("/scenes", app.ScenesCreate)
				r.Get("/scenes", app.ScenesList)
				r.Post("/chat", app.ChatSend)
				r.Get("/chat", app.ChatHistory)
			})
		})

		r.Route("/scenes/{scene_id}", func(r chi.Router) {
			r.Delete("/", app.ScenesDelete)
			r.Post("/clips", app.ClipsCreate)
			r.Get("/clips", app.ClipsList)
		})

		r.Delete("/clips/{clip_id}", app.ClipsDelete)
	})

	return r
}
