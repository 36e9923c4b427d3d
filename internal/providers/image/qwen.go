package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scenestudio/internal/domain"
	"scenestudio/internal/providers/qwen"
)

type qwenImageClient interface {
	GenerateImage(context.Context, qwen.ImageRequest) (*qwen.ImageAsset, error)
	HasCredentials() bool
	Model() string
}

// QwenGenerator orchestrates calls to DashScope's Qwen image model and falls
// back to another generator when credentials are missing.
type QwenGenerator struct {
	client   qwenImageClient
	fallback Generator
}

// NewQwenGenerator wires a Qwen client with an optional fallback generator.
func NewQwenGenerator(client qwenImageClient, fallback Generator) *QwenGenerator {
	return &QwenGenerator{client: client, fallback: fallback}
}

// Generate fulfils the Generator interface. The DashScope API returns one
// image per call, so a batch request fans out into sequential calls with
// derived seeds.
func (g *QwenGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("qwen generator not configured")
	}
	if !g.client.HasCredentials() {
		if g.fallback != nil {
			return g.fallback.Generate(ctx, req)
		}
		return nil, qwen.ErrMissingAPIKey
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	size := AspectRatioSize(req.AspectRatio)
	var reference string
	if len(req.ReferenceURLs) > 0 {
		reference = strings.TrimSpace(req.ReferenceURLs[0])
	}

	assets := make([]Asset, 0, quantity)
	for i := 0; i < quantity; i++ {
		seed := derivedSeed(req.Seed, i)
		asset, err := g.client.GenerateImage(ctx, qwen.ImageRequest{
			Prompt:         strings.TrimSpace(req.Prompt),
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			Size:           size,
			Seed:           seed,
			ReferenceURL:   reference,
			RequestID:      req.RequestID,
		})
		if err != nil {
			return nil, err
		}
		assets = append(assets, Asset{
			URL:    asset.URL,
			Format: normalizeFormat(asset.Format),
			Width:  asset.Width,
			Height: asset.Height,
			Data:   asset.Data,
			Seed:   seed,
		})
	}
	return assets, nil
}

var _ Generator = (*QwenGenerator)(nil)

// derivedSeed offsets the locked seed per batch index so repeated images in
// one batch differ while the run stays reproducible. A nil seed stays nil
// and lets the provider pick.
func derivedSeed(seed *int64, index int) *int64 {
	if seed == nil {
		return nil
	}
	v := *seed + int64(index)
	return &v
}

// IsMissingCredentials reports whether err signals absent API credentials as
// opposed to a remote failure.
func IsMissingCredentials(err error) bool {
	if errors.Is(err, qwen.ErrMissingAPIKey) {
		return true
	}
	var provErr *domain.ProviderError
	return errors.As(err, &provErr) && provErr.StatusCode == 401
}
