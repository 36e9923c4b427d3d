package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"scenestudio/internal/adapter/repo"
	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/http/handlers"
	"scenestudio/internal/http/httpapi"
	"scenestudio/internal/infra"
	"scenestudio/internal/infra/geoip"
	"scenestudio/internal/notify"
	"scenestudio/internal/orchestrator"
	"scenestudio/internal/providers/chat"
	"scenestudio/internal/providers/genai"
	"scenestudio/internal/providers/image"
	"scenestudio/internal/providers/prompt"
	"scenestudio/internal/providers/qwen"
	"scenestudio/internal/providers/video"
	"scenestudio/internal/queue"
	"scenestudio/internal/reference"
	"scenestudio/internal/results"
	"scenestudio/internal/settings"
	"scenestudio/internal/storage"
	"scenestudio/internal/story"
	"scenestudio/internal/sweep"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: database connection failed")
	}
	defer pool.Close()

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: redis connection failed")
	}
	defer func() { _ = redisClient.Close() }()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage backend failed")
	}

	jobQueue, err := queue.NewJobQueue(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: job queue connection failed")
	}
	defer func() { _ = jobQueue.Close() }()

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip database unavailable, region checks disabled")
	}

	jobs := repo.NewJobRepository(pool)
	assets := repo.NewAssetRepository(pool)
	capsRepo := repo.NewCapabilityRepository(pool)
	storyRepo := repo.NewStoryRepository(pool)
	settingsRepo := repo.NewSettingsRepository(pool)

	bus := notify.NewBus(redisClient, logger)
	hub := notify.NewHub()
	sink := results.NewSink(jobs, assets, store, bus, cfg.SignedURLTTL, logger)

	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: gemini client failed")
	}
	qwenClient, err := qwen.NewClient(qwen.Options{
		APIKey:  cfg.QwenAPIKey,
		BaseURL: cfg.QwenBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: qwen client failed")
	}

	geminiImage := image.NewGeminiGenerator(geminiClient)
	qwenImage := image.NewQwenGenerator(qwenClient, geminiImage)
	geminiVideo := video.NewGeminiGenerator(geminiClient)

	direct := map[domain.Provider]orchestrator.DirectInvoker{
		domain.ProviderGemini: orchestrator.NewModalInvoker(
			orchestrator.NewImageInvoker(geminiImage),
			orchestrator.NewVideoInvoker(geminiVideo),
		),
		domain.ProviderQwen: orchestrator.NewModalInvoker(
			orchestrator.NewImageInvoker(qwenImage),
			nil,
		),
	}

	resolver := capability.NewResolver(capsRepo, logger, cfg.CapabilityCacheTTL)
	preparer := reference.NewPreparer(store, cfg.SignedURLTTL, logger)
	builder := orchestrator.NewBuilder(resolver, logger)
	submitter := orchestrator.NewSubmitter(resolver, jobs, jobQueue, direct, sink, logger)
	tracker := orchestrator.NewTracker(cfg.PlaceholderMaxAge, logger)
	reconciler := orchestrator.NewReconciler(jobs, assets, bus, tracker, 2*time.Second, cfg.SubscriptionWait, logger)
	generator := orchestrator.NewService(resolver, preparer, builder, submitter, tracker, reconciler, logger)

	settingsSvc := settings.NewService(settingsRepo, resolver, geo, logger)
	completer := chat.NewGeminiCompleter(geminiClient, 0)
	storySvc := story.NewService(storyRepo, assets, generator, completer, logger)
	enhancer := prompt.NewGeminiEnhancer(geminiClient, prompt.NewStaticEnhancer())

	bridge := notify.NewBridge(bus, hub, logger)
	go bridge.Run(ctx)
	go attachClipResults(ctx, bus, storySvc, logger)

	scheduler := sweep.NewScheduler(tracker, resolver, jobs, cfg.TrackerSweepEvery, cfg.SubscriptionWait, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("api: scheduler failed to start")
	}
	defer scheduler.Stop()

	app := &handlers.App{
		Generator: generator,
		Jobs:      jobs,
		Assets:    assets,
		Models:    capsRepo,
		Resolver:  resolver,
		Settings:  settingsSvc,
		Story:     storySvc,
		Enhancer:  enhancer,
		Hub:       hub,
		Store:     store,
		Validate:  validator.New(),
		SignTTL:   cfg.SignedURLTTL,
		Logger:    logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api: server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}

func newStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinIOStore(ctx, cfg)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

// attachClipResults links finished video jobs back to their storyboard clips
// so the extracted frame becomes available for the next segment. Clips whose
// jobs completed while no API process was listening are picked up by the
// startup re-scan.
func attachClipResults(ctx context.Context, bus *notify.Bus, storySvc *story.Service, logger infra.Logger) {
	if err := storySvc.ReattachPendingClips(ctx); err != nil {
		logger.Warn().Err(err).Msg("api: clip reattachment scan failed")
	}
	for {
		if err := consumeClipEvents(ctx, bus, storySvc, logger); err != nil {
			logger.Warn().Err(err).Msg("api: clip attachment stream interrupted")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeClipEvents(ctx context.Context, bus *notify.Bus, storySvc *story.Service, logger infra.Logger) error {
	events, cancel, err := bus.SubscribeAllJobs(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Status != domain.JobStatusCompleted {
				continue
			}
			if err := storySvc.AttachClipResult(ctx, event.JobID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				logger.Warn().Err(err).Str("job_id", event.JobID).Msg("api: clip attachment failed")
			}
		}
	}
}
