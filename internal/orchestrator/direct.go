package orchestrator

import (
	"context"

	"scenestudio/internal/domain"
	"scenestudio/internal/providers/image"
	"scenestudio/internal/providers/video"
)

// ImageInvoker adapts an image generator to the DirectInvoker contract.
type ImageInvoker struct {
	generator image.Generator
}

// NewImageInvoker wraps gen for direct submission.
func NewImageInvoker(gen image.Generator) *ImageInvoker {
	return &ImageInvoker{generator: gen}
}

// Invoke fulfils DirectInvoker.
func (iv *ImageInvoker) Invoke(ctx context.Context, payload ProviderPayload) ([]domain.GeneratedAsset, error) {
	refs := payload.ImageURLs
	if payload.ImageURL != "" {
		refs = append([]string{payload.ImageURL}, refs...)
	}
	assets, err := iv.generator.Generate(ctx, image.GenerateRequest{
		Prompt:         payload.Prompt,
		NegativePrompt: payload.NegativePrompt,
		Quantity:       payload.Quantity,
		AspectRatio:    payload.AspectRatio,
		Seed:           payload.Seed,
		Strength:       payload.Strength,
		ReferenceURLs:  refs,
		RequestID:      payload.JobID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.GeneratedAsset, len(assets))
	for i, a := range assets {
		out[i] = domain.GeneratedAsset{
			Kind:     domain.AssetKindImage,
			URL:      a.URL,
			MIME:     a.Format,
			Width:    a.Width,
			Height:   a.Height,
			Data:     a.Data,
			SeedUsed: a.Seed,
		}
	}
	return out, nil
}

var _ DirectInvoker = (*ImageInvoker)(nil)

// VideoInvoker adapts a video generator to the DirectInvoker contract. A
// final frame emitted by the generator rides along as a frame asset so clip
// chaining has something to start the next segment from.
type VideoInvoker struct {
	generator video.Generator
}

// NewVideoInvoker wraps gen for direct submission.
func NewVideoInvoker(gen video.Generator) *VideoInvoker {
	return &VideoInvoker{generator: gen}
}

// Invoke fulfils DirectInvoker.
func (iv *VideoInvoker) Invoke(ctx context.Context, payload ProviderPayload) ([]domain.GeneratedAsset, error) {
	start := payload.StartFrameURL
	if start == "" {
		start = payload.ImageURL
	}
	asset, err := iv.generator.Generate(ctx, video.GenerateRequest{
		Prompt:          payload.Prompt,
		NegativePrompt:  payload.NegativePrompt,
		DurationSeconds: payload.DurationSeconds,
		StartFrameURL:   start,
		EndFrameURL:     payload.EndFrameURL,
		Seed:            payload.Seed,
		RequestID:       payload.JobID,
	})
	if err != nil {
		return nil, err
	}
	out := []domain.GeneratedAsset{{
		Kind:     domain.AssetKindVideo,
		URL:      asset.URL,
		MIME:     asset.Format,
		Data:     asset.Data,
		SeedUsed: payload.Seed,
	}}
	if len(asset.LastFrame) > 0 {
		out = append(out, domain.GeneratedAsset{
			Kind: domain.AssetKindFrame,
			MIME: "image/png",
			Data: asset.LastFrame,
		})
	}
	return out, nil
}

var _ DirectInvoker = (*VideoInvoker)(nil)

// ModalInvoker routes payloads to the image or video invoker by mode, for
// providers that serve both.
type ModalInvoker struct {
	image DirectInvoker
	video DirectInvoker
}

// NewModalInvoker builds a mode router. Either invoker may be nil when the
// provider lacks that modality.
func NewModalInvoker(image, video DirectInvoker) *ModalInvoker {
	return &ModalInvoker{image: image, video: video}
}

// Invoke fulfils DirectInvoker.
func (m *ModalInvoker) Invoke(ctx context.Context, payload ProviderPayload) ([]domain.GeneratedAsset, error) {
	switch payload.Mode {
	case domain.JobModeVideo:
		if m.video == nil {
			return nil, &domain.ProviderError{StatusCode: 400, Message: "provider does not support video generation"}
		}
		return m.video.Invoke(ctx, payload)
	default:
		if m.image == nil {
			return nil, &domain.ProviderError{StatusCode: 400, Message: "provider does not support image generation"}
		}
		return m.image.Invoke(ctx, payload)
	}
}

var _ DirectInvoker = (*ModalInvoker)(nil)
