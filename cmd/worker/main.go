package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"scenestudio/internal/adapter/repo"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/notify"
	"scenestudio/internal/orchestrator"
	"scenestudio/internal/providers/image"
	"scenestudio/internal/providers/video"
	"scenestudio/internal/queue"
	"scenestudio/internal/results"
	"scenestudio/internal/storage"
)

// worker drains the generation queue for local models. It renders with the
// in-process generators, persists output through the shared result sink and
// publishes completion events for the API side to reconcile.
type worker struct {
	jobs    domain.JobRepository
	invoker orchestrator.DirectInvoker
	sink    *results.Sink
	logger  infra.Logger
}

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
		logger.Fatal().Err(err).Msg("worker: database connection failed")
	}
	defer pool.Close()

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer func() { _ = redisClient.Close() }()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: storage backend failed")
	}

	jobQueue, err := queue.NewJobQueue(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: job queue connection failed")
	}
	defer func() { _ = jobQueue.Close() }()

	jobs := repo.NewJobRepository(pool)
	assets := repo.NewAssetRepository(pool)
	bus := notify.NewBus(redisClient, logger)
	sink := results.NewSink(jobs, assets, store, bus, cfg.SignedURLTTL, logger)

	w := &worker{
		jobs: jobs,
		invoker: orchestrator.NewModalInvoker(
			orchestrator.NewImageInvoker(image.NewLocalGenerator()),
			orchestrator.NewVideoInvoker(video.NewLocalGenerator()),
		),
		sink:   sink,
		logger: logger,
	}

	logger.Info().Str("queue", cfg.JobQueueName).Msg("worker: started")
	if err := jobQueue.Consume(ctx, w.handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: consumer stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func newStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinIOStore(ctx, cfg)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

func (w *worker) handle(ctx context.Context, body []byte) error {
	var payload orchestrator.ProviderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}

	job, err := w.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return queue.Permanent(fmt.Errorf("job %s has no record", payload.JobID))
		}
		return err
	}
	if job.Status.Terminal() {
		w.logger.Info().Str("job_id", job.ID).Msg("worker: skipping redelivered terminal job")
		return nil
	}

	if err := w.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil, nil); err != nil {
		return err
	}
	w.logger.Info().Str("job_id", job.ID).Str("mode", string(job.Mode)).Msg("worker: rendering job")

	generated, err := w.invoker.Invoke(ctx, payload)
	if err != nil {
		return w.failJob(ctx, job, err)
	}
	if _, err := w.sink.Complete(ctx, job, generated); err != nil {
		return fmt.Errorf("finalize job %s: %w", job.ID, err)
	}
	w.logger.Info().Str("job_id", job.ID).Int("assets", len(generated)).Msg("worker: job completed")
	return nil
}

// failJob records the failure and decides whether the message should be
// retried. Provider validation errors cannot succeed on redelivery.
func (w *worker) failJob(ctx context.Context, job *domain.Job, cause error) error {
	var provErr *domain.ProviderError
	if errors.As(cause, &provErr) && !provErr.Transient() {
		if err := w.sink.Fail(ctx, job, provErr.Message); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: failed to record job failure")
		}
		return queue.Permanent(cause)
	}
	if err := w.sink.Fail(ctx, job, "generation failed, please try again"); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: failed to record job failure")
	}
	return cause
}
