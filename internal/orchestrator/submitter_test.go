package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
)

func submitterFixture(t *testing.T, table map[string]domain.Capabilities, queue QueuePublisher, direct map[domain.Provider]DirectInvoker, sink ResultSink) (*Submitter, *memJobRepo) {
	t.Helper()
	resolver := capability.NewResolver(&stubCapRepo{byID: table}, testLogger(), time.Minute)
	jobs := newMemJobRepo()
	return NewSubmitter(resolver, jobs, queue, direct, sink, testLogger()), jobs
}

func TestSubmitQueuesLocalWorkerJob(t *testing.T) {
	queue := &capturingQueue{}
	table := map[string]domain.Capabilities{"local-default": domain.DefaultLocalCapabilities()}
	s, jobs := submitterFixture(t, table, queue, nil, newRecordingSink())

	result, err := s.Submit(context.Background(), ProviderPayload{
		JobID:    "job-1",
		OwnerID:  "owner-1",
		Mode:     domain.JobModeImage,
		ModelID:  "local-default",
		Provider: domain.ProviderLocalWorker,
		Prompt:   "a red door",
		Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, result.Status)
	assert.Len(t, queue.published, 1)

	job, err := jobs.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
}

func TestSubmitMarksJobFailedWhenPublishFails(t *testing.T) {
	queue := &capturingQueue{err: errors.New("broker unavailable")}
	table := map[string]domain.Capabilities{"local-default": domain.DefaultLocalCapabilities()}
	s, jobs := submitterFixture(t, table, queue, nil, newRecordingSink())

	_, err := s.Submit(context.Background(), ProviderPayload{
		JobID:    "job-1",
		ModelID:  "local-default",
		Provider: domain.ProviderLocalWorker,
		Quantity: 1,
	})
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, KindTransient, subErr.Kind)

	job, getErr := jobs.GetByID(context.Background(), "job-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
}

func TestSubmitOpaqueKeyReconfirmsProvider(t *testing.T) {
	// A database-keyed model whose cached provider assumption went stale:
	// the descriptor table now routes it to Qwen.
	opaqueID := uuid.NewString()
	table := map[string]domain.Capabilities{
		opaqueID: {
			ModelID:  opaqueID,
			Provider: domain.ProviderQwen,
			Modality: domain.JobModeImage,
		},
	}
	invoker := &stubInvoker{assets: []domain.GeneratedAsset{{Kind: domain.AssetKindImage}}}
	direct := map[domain.Provider]DirectInvoker{domain.ProviderQwen: invoker}
	s, _ := submitterFixture(t, table, &capturingQueue{}, direct, newRecordingSink())

	result, err := s.Submit(context.Background(), ProviderPayload{
		JobID:    "job-1",
		ModelID:  opaqueID,
		Provider: domain.ProviderGemini,
		Prompt:   "p",
		Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, invoker.calls)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
}

func TestSubmitRejectsMissingRequiredReference(t *testing.T) {
	table := map[string]domain.Capabilities{
		"i2i-only": {
			ModelID:                "i2i-only",
			Provider:               domain.ProviderGemini,
			Modality:               domain.JobModeImage,
			RequiresReferenceImage: true,
			MaxReferenceImages:     1,
		},
	}
	s, _ := submitterFixture(t, table, &capturingQueue{}, nil, newRecordingSink())

	_, err := s.Submit(context.Background(), ProviderPayload{
		JobID:    "job-1",
		ModelID:  "i2i-only",
		Provider: domain.ProviderGemini,
		Prompt:   "p",
		Quantity: 1,
	})
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, KindValidation, subErr.Kind)
	assert.ErrorIs(t, err, domain.ErrMissingReference)
}

func TestSubmitDirectCompletesSynchronously(t *testing.T) {
	table := map[string]domain.Capabilities{
		"gemini-image": {ModelID: "gemini-image", Provider: domain.ProviderGemini, Modality: domain.JobModeImage},
	}
	sink := newRecordingSink()
	invoker := &stubInvoker{assets: []domain.GeneratedAsset{{Kind: domain.AssetKindImage}}}
	direct := map[domain.Provider]DirectInvoker{domain.ProviderGemini: invoker}
	s, _ := submitterFixture(t, table, &capturingQueue{}, direct, sink)

	result, err := s.Submit(context.Background(), ProviderPayload{
		JobID:    "job-1",
		ModelID:  "gemini-image",
		Provider: domain.ProviderGemini,
		Prompt:   "p",
		Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Len(t, result.Assets, 1)
	assert.Equal(t, []string{"job-1"}, sink.completed)
}

func TestSubmitDirectFailureRecordsAndClassifies(t *testing.T) {
	table := map[string]domain.Capabilities{
		"gemini-image": {ModelID: "gemini-image", Provider: domain.ProviderGemini, Modality: domain.JobModeImage},
	}
	sink := newRecordingSink()
	invoker := &stubInvoker{err: &domain.ProviderError{StatusCode: 400, Message: "no image provided in image_url"}}
	direct := map[domain.Provider]DirectInvoker{domain.ProviderGemini: invoker}
	s, _ := submitterFixture(t, table, &capturingQueue{}, direct, sink)

	_, err := s.Submit(context.Background(), ProviderPayload{
		JobID:    "job-1",
		ModelID:  "gemini-image",
		Provider: domain.ProviderGemini,
		Prompt:   "p",
		Quantity: 1,
	})
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, KindValidation, subErr.Kind)
	assert.Equal(t, "this model requires a reference image", subErr.Message)
	assert.Equal(t, subErr.Message, sink.failed["job-1"])
}

func TestClassifyProviderError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		kind    ErrorKind
		message string
	}{
		{
			name:    "rate limited is transient",
			err:     &domain.ProviderError{StatusCode: 429, Message: "slow down"},
			kind:    KindTransient,
			message: "generation failed, please try again",
		},
		{
			name:    "server error is transient",
			err:     &domain.ProviderError{StatusCode: 503, Message: "overloaded"},
			kind:    KindTransient,
			message: "generation failed, please try again",
		},
		{
			name:    "missing reference pattern becomes friendly validation",
			err:     &domain.ProviderError{StatusCode: 400, Message: "field image_url is required"},
			kind:    KindValidation,
			message: "this model requires a reference image",
		},
		{
			name:    "other client error surfaces verbatim",
			err:     &domain.ProviderError{StatusCode: 400, Message: "prompt violates content policy"},
			kind:    KindUnrecoverable,
			message: "prompt violates content policy",
		},
		{
			name:    "plain error is transient",
			err:     errors.New("dial tcp: connection refused"),
			kind:    KindTransient,
			message: "generation failed, please try again",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subErr := classifyProviderError(tc.err)
			assert.Equal(t, tc.kind, subErr.Kind)
			assert.Equal(t, tc.message, subErr.Message)
		})
	}
}
