package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
)

// ErrorKind classifies submission failures for presentation.
type ErrorKind string

const (
	// KindValidation failures are user-correctable and never left the client.
	KindValidation ErrorKind = "validation"
	// KindTransient failures get a generic retry message.
	KindTransient ErrorKind = "transient"
	// KindUnrecoverable failures surface the backend error body verbatim.
	KindUnrecoverable ErrorKind = "unrecoverable"
)

// SubmissionError is the classified failure returned by Submit.
type SubmissionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *SubmissionError) Error() string { return e.Message }
func (e *SubmissionError) Unwrap() error { return e.Err }

// SubmitResult is what a successful submission yields. Synchronous providers
// may complete before Submit returns, in which case Assets is already
// populated.
type SubmitResult struct {
	JobID  string
	Status domain.JobStatus
	Assets []domain.Asset
}

// QueuePublisher is the worker-queue entry point.
type QueuePublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// DirectInvoker runs a payload against an external API synchronously.
type DirectInvoker interface {
	Invoke(ctx context.Context, payload ProviderPayload) ([]domain.GeneratedAsset, error)
}

// ResultSink persists provider output and finalizes the job record.
type ResultSink interface {
	Complete(ctx context.Context, job *domain.Job, generated []domain.GeneratedAsset) ([]domain.Asset, error)
	Fail(ctx context.Context, job *domain.Job, msg string) error
}

// Submitter dispatches built payloads to the right backend entry point:
// worker-queue jobs for local models, direct invocation for external APIs.
type Submitter struct {
	resolver *capability.Resolver
	jobs     domain.JobRepository
	queue    QueuePublisher
	direct   map[domain.Provider]DirectInvoker
	sink     ResultSink
	logger   infra.Logger
}

// NewSubmitter wires a submitter.
func NewSubmitter(resolver *capability.Resolver, jobs domain.JobRepository, queue QueuePublisher, direct map[domain.Provider]DirectInvoker, sink ResultSink, logger infra.Logger) *Submitter {
	return &Submitter{
		resolver: resolver,
		jobs:     jobs,
		queue:    queue,
		direct:   direct,
		sink:     sink,
		logger:   logger,
	}
}

// Submit dispatches the payload and returns a job id, or the synchronous
// result for direct providers.
func (s *Submitter) Submit(ctx context.Context, payload ProviderPayload) (SubmitResult, error) {
	// Opaque database keys can carry a stale cached provider; re-resolve
	// before dispatch to catch the rerouting race. Static aliases are
	// trusted as-is.
	if isOpaqueModelKey(payload.ModelID) {
		caps := s.resolver.Confirm(ctx, payload.ModelID, payload.Provider)
		payload.Provider = caps.Provider
	}

	caps := s.resolver.Resolve(ctx, payload.ModelID)
	if caps.RequiresReferenceImage && !payload.HasReferenceImage() {
		return SubmitResult{}, &SubmissionError{
			Kind:    KindValidation,
			Message: "this model requires a reference image",
			Err:     domain.ErrMissingReference,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, &SubmissionError{Kind: KindUnrecoverable, Message: "failed to encode request", Err: err}
	}

	job := &domain.Job{
		ID:          payload.JobID,
		OwnerID:     payload.OwnerID,
		Mode:        payload.Mode,
		Status:      domain.JobStatusQueued,
		ModelID:     payload.ModelID,
		Provider:    payload.Provider,
		PayloadJSON: body,
		Quantity:    payload.Quantity,
		CreatedAt:   time.Now(),
	}

	if payload.Provider == domain.ProviderLocalWorker {
		return s.submitQueued(ctx, job, body)
	}
	return s.submitDirect(ctx, job, payload)
}

func (s *Submitter) submitQueued(ctx context.Context, job *domain.Job, body []byte) (SubmitResult, error) {
	if err := s.jobs.Create(ctx, job); err != nil {
		return SubmitResult{}, &SubmissionError{Kind: KindTransient, Message: "generation failed, please try again", Err: err}
	}
	if err := s.queue.Publish(ctx, body); err != nil {
		msg := "generation failed, please try again"
		_ = s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, &msg, nil)
		return SubmitResult{}, &SubmissionError{Kind: KindTransient, Message: msg, Err: err}
	}
	s.logger.Info().Str("job_id", job.ID).Str("model_id", job.ModelID).Msg("submitter: queued local-worker job")
	return SubmitResult{JobID: job.ID, Status: domain.JobStatusQueued}, nil
}

func (s *Submitter) submitDirect(ctx context.Context, job *domain.Job, payload ProviderPayload) (SubmitResult, error) {
	invoker, ok := s.direct[payload.Provider]
	if !ok {
		return SubmitResult{}, &SubmissionError{
			Kind:    KindUnrecoverable,
			Message: fmt.Sprintf("provider %q is not configured", payload.Provider),
			Err:     domain.ErrProviderFailure,
		}
	}

	job.Status = domain.JobStatusProcessing
	if err := s.jobs.Create(ctx, job); err != nil {
		return SubmitResult{}, &SubmissionError{Kind: KindTransient, Message: "generation failed, please try again", Err: err}
	}

	generated, err := invoker.Invoke(ctx, payload)
	if err != nil {
		subErr := classifyProviderError(err)
		if failErr := s.sink.Fail(ctx, job, subErr.Message); failErr != nil {
			s.logger.Error().Err(failErr).Str("job_id", job.ID).Msg("submitter: failed to record job failure")
		}
		return SubmitResult{}, subErr
	}

	assets, err := s.sink.Complete(ctx, job, generated)
	if err != nil {
		return SubmitResult{}, &SubmissionError{Kind: KindTransient, Message: "generation failed, please try again", Err: err}
	}
	s.logger.Info().Str("job_id", job.ID).Int("assets", len(assets)).Msg("submitter: direct provider completed synchronously")
	return SubmitResult{JobID: job.ID, Status: domain.JobStatusCompleted, Assets: assets}, nil
}

// isOpaqueModelKey distinguishes database keys from static model aliases.
func isOpaqueModelKey(modelID string) bool {
	_, err := uuid.Parse(modelID)
	return err == nil
}

// classifyProviderError maps provider failures into the presentation
// taxonomy, pattern-matching known signatures in error bodies to produce a
// friendlier message.
func classifyProviderError(err error) *SubmissionError {
	var provErr *domain.ProviderError
	if errors.As(err, &provErr) {
		if provErr.Transient() {
			return &SubmissionError{Kind: KindTransient, Message: "generation failed, please try again", Err: err}
		}
		lower := strings.ToLower(provErr.Message)
		if strings.Contains(lower, "image_url") || strings.Contains(lower, "reference image") || strings.Contains(lower, "no image provided") {
			return &SubmissionError{Kind: KindValidation, Message: "this model requires a reference image", Err: err}
		}
		return &SubmissionError{Kind: KindUnrecoverable, Message: provErr.Message, Err: err}
	}
	return &SubmissionError{Kind: KindTransient, Message: "generation failed, please try again", Err: err}
}
