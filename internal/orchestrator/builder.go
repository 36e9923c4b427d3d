package orchestrator

import (
	"context"
	"fmt"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
)

// exactCopyBoilerplate is appended to the prompt only on the exact-copy
// path, where no reference image carries the identity constraint
// structurally.
const exactCopyBoilerplate = " Reproduce the composition, subject identity and framing of the original output exactly."

// Builder assembles provider payloads from an immutable generation request
// and the resolved model capabilities. Capability-driven rerouting happens
// here: a reference count above the model's maximum substitutes a
// higher-capacity model from the descriptor table instead of truncating.
type Builder struct {
	resolver *capability.Resolver
	logger   infra.Logger
}

// NewBuilder constructs a request builder.
func NewBuilder(resolver *capability.Resolver, logger infra.Logger) *Builder {
	return &Builder{resolver: resolver, logger: logger}
}

// Build produces the provider payload for req. caps must be the resolved
// capabilities for req.ModelID.
func (b *Builder) Build(ctx context.Context, req domain.GenerationRequest, caps domain.Capabilities) (ProviderPayload, error) {
	payload := ProviderPayload{
		JobID:           req.ID,
		OwnerID:         req.OwnerID,
		Mode:            req.Mode,
		ModelID:         caps.ModelID,
		Provider:        caps.Provider,
		Prompt:          req.Prompt,
		NegativePrompt:  req.Params.NegativePrompt,
		Quantity:        req.Quantity,
		AspectRatio:     req.Params.AspectRatio,
		Steps:           req.Params.Steps,
		GuidanceScale:   req.Params.GuidanceScale,
		DurationSeconds: req.Params.DurationSeconds,
		ContentRating:   req.ContentRating,
	}

	if err := b.embedReferences(ctx, req, caps, &payload); err != nil {
		return ProviderPayload{}, err
	}

	// A locked seed passes through; otherwise the provider picks one.
	if req.Params.Seed != nil && caps.SupportsSeed {
		seed := *req.Params.Seed
		payload.Seed = &seed
	}

	payload.Prompt = decoratePrompt(req, payload)
	return payload, nil
}

func (b *Builder) embedReferences(ctx context.Context, req domain.GenerationRequest, caps domain.Capabilities, payload *ProviderPayload) error {
	refs := req.References
	if len(refs) == 0 {
		return nil
	}

	if caps.Provider == domain.ProviderLocalWorker {
		// Local workers take dual-reference conditioning as distinct named
		// fields, so role information must survive.
		for _, ref := range refs {
			switch ref.Role {
			case domain.RoleStartFrame:
				payload.StartFrameURL = ref.URL
			case domain.RoleEndFrame:
				payload.EndFrameURL = ref.URL
			case domain.RoleStyle:
				payload.StyleURL = ref.URL
			default:
				payload.ImageURLs = append(payload.ImageURLs, ref.URL)
			}
		}
		if caps.SupportsStrength {
			payload.Strength = denoiseStrength(req.Params.Preservation)
		}
		return nil
	}

	// The capacity check runs before any embedding so a single-reference
	// model can never swallow an overflow by keeping only the first URL.
	if len(refs) > caps.MaxReferenceImages {
		substitute, err := b.resolver.FindWithCapacity(ctx, req.Mode, len(refs))
		if err != nil {
			return fmt.Errorf("%w: %d references, %q accepts %d",
				domain.ErrCapacityExceeded, len(refs), caps.ModelID, caps.MaxReferenceImages)
		}
		b.logger.Info().
			Str("from_model", caps.ModelID).
			Str("to_model", substitute.ModelID).
			Int("reference_count", len(refs)).
			Msg("builder: substituted higher-capacity model")
		payload.ModelID = substitute.ModelID
		payload.Provider = substitute.Provider
		caps = substitute
	}

	if caps.MaxReferenceImages <= 1 {
		// Single-reference providers receive the one prepared URL.
		payload.ImageURL = refs[0].URL
		if caps.SupportsStrength {
			payload.Strength = denoiseStrength(req.Params.Preservation)
		}
		return nil
	}

	for _, ref := range refs {
		payload.ImageURLs = append(payload.ImageURLs, ref.URL)
	}
	if caps.SupportsStrength {
		payload.Strength = denoiseStrength(req.Params.Preservation)
	}
	return nil
}

// decoratePrompt keeps the prompt clean when a reference image carries the
// identity constraint structurally. Only the exact-copy path gets
// boilerplate.
func decoratePrompt(req domain.GenerationRequest, payload ProviderPayload) string {
	if req.ExactCopy && !payload.HasReferenceImage() {
		return req.Prompt + exactCopyBoilerplate
	}
	return req.Prompt
}

// denoiseStrength converts the configured identity preservation into the
// denoise amount providers expect.
func denoiseStrength(preservation float64) *float64 {
	if preservation < 0 {
		preservation = 0
	}
	if preservation > 1 {
		preservation = 1
	}
	strength := 1 - preservation
	return &strength
}
