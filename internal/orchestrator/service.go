package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/reference"
)

// Service runs the full generation pipeline: validate, prepare references,
// build the provider payload, submit, then track an optimistic placeholder
// group until reconciliation removes it.
type Service struct {
	resolver   *capability.Resolver
	preparer   *reference.Preparer
	builder    *Builder
	submitter  *Submitter
	tracker    *Tracker
	reconciler *Reconciler
	logger     infra.Logger
}

// NewService wires the pipeline.
func NewService(resolver *capability.Resolver, preparer *reference.Preparer, builder *Builder, submitter *Submitter, tracker *Tracker, reconciler *Reconciler, logger infra.Logger) *Service {
	return &Service{
		resolver:   resolver,
		preparer:   preparer,
		builder:    builder,
		submitter:  submitter,
		tracker:    tracker,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Generate executes one request end to end up to submission. Reconciliation
// continues in the background; callers observe completion through job events
// or polling.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest) (SubmitResult, error) {
	if err := validateRequest(req); err != nil {
		return SubmitResult{}, &SubmissionError{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	caps := s.resolver.Resolve(ctx, req.ModelID)
	if !caps.SupportsTask(taskFor(req)) {
		err := fmt.Errorf("%w: model %q does not support this operation", domain.ErrInvalidRequest, req.ModelID)
		return SubmitResult{}, &SubmissionError{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	prepared, err := s.preparer.Prepare(ctx, req.OwnerID, req.References)
	if err != nil {
		return SubmitResult{}, classifyPrepareError(err)
	}
	req.References = prepared

	payload, err := s.builder.Build(ctx, req, caps)
	if err != nil {
		return SubmitResult{}, classifyBuildError(err)
	}

	result, err := s.submitter.Submit(ctx, payload)
	if err != nil {
		return SubmitResult{}, err
	}

	// Synchronous providers already have assets; only queued jobs need the
	// optimistic placeholder group and background reconciliation.
	if result.Status.Terminal() {
		return result, nil
	}
	s.tracker.Track(result.JobID, req.Quantity, req.Mode, payload.ModelID, req.Prompt)
	go s.awaitCompletion(result.JobID)
	return result, nil
}

func (s *Service) awaitCompletion(jobID string) {
	ctx := context.Background()
	outcome, err := s.reconciler.Await(ctx, jobID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("orchestrator: reconciliation ended without terminal state")
		return
	}
	s.logger.Info().
		Str("job_id", jobID).
		Str("status", string(outcome.Status)).
		Int("assets", len(outcome.Assets)).
		Msg("orchestrator: job reconciled")
}

// Placeholders exposes the current optimistic groups for asset listings.
func (s *Service) Placeholders() []Placeholder {
	return s.tracker.Snapshot()
}

// ReconcilePlaceholders drops every placeholder group whose job id already
// has a confirmed asset in the authoritative listing, then returns what is
// still pending. Asset feeds call this so a finished job never shows up as
// both a pending tile and a real asset in one response.
func (s *Service) ReconcilePlaceholders(assets []domain.Asset) []Placeholder {
	s.tracker.ReconcileAssets(assets)
	return s.tracker.Snapshot()
}

func validateRequest(req domain.GenerationRequest) error {
	if strings.TrimSpace(req.Prompt) == "" && len(req.References) == 0 {
		return fmt.Errorf("%w: prompt or reference material is required", domain.ErrInvalidRequest)
	}
	if req.Quantity < 1 || req.Quantity > 8 {
		return fmt.Errorf("%w: quantity must be between 1 and 8", domain.ErrInvalidRequest)
	}
	if req.Mode == domain.JobModeVideo && req.Params.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration cannot be negative", domain.ErrInvalidRequest)
	}
	return nil
}

// taskFor derives the task class from the request shape.
func taskFor(req domain.GenerationRequest) domain.Task {
	switch req.Mode {
	case domain.JobModeVideo:
		if len(req.ReferencesByRole(domain.RoleStartFrame)) > 0 || len(req.ReferencesByRole(domain.RoleEndFrame)) > 0 {
			return domain.TaskImageToVideo
		}
		if len(req.References) > 0 {
			return domain.TaskImageToVideo
		}
		return domain.TaskTextToVideo
	default:
		if len(req.References) > 1 {
			return domain.TaskMultiRef
		}
		if len(req.References) == 1 {
			return domain.TaskImageToImage
		}
		return domain.TaskTextToImage
	}
}

// classifyPrepareError keeps the user-facing message specific to which leg
// of reference preparation broke: the upload itself or obtaining a usable
// link. An empty reference is the caller's mistake, not a transient fault.
func classifyPrepareError(err error) *SubmissionError {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return &SubmissionError{Kind: KindValidation, Message: err.Error(), Err: err}
	case errors.Is(err, domain.ErrUploadFailed):
		return &SubmissionError{
			Kind:    KindTransient,
			Message: "file upload failed, please try again",
			Err:     err,
		}
	case errors.Is(err, domain.ErrSigningFailed):
		return &SubmissionError{
			Kind:    KindTransient,
			Message: "could not get a usable link for reference material, please try again",
			Err:     err,
		}
	default:
		return &SubmissionError{
			Kind:    KindTransient,
			Message: "could not prepare reference material, please try again",
			Err:     err,
		}
	}
}

func classifyBuildError(err error) *SubmissionError {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrCapacityExceeded) {
		return &SubmissionError{
			Kind:    KindValidation,
			Message: "too many reference images for any available model",
			Err:     err,
		}
	}
	return &SubmissionError{Kind: KindUnrecoverable, Message: err.Error(), Err: err}
}
