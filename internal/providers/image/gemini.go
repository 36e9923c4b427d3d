package image

import (
	"context"

	"scenestudio/internal/providers/genai"
)

// GeminiGenerator adapts the Gemini client to the Generator contract.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator wires a Gemini-backed image generator.
func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

// Generate fulfils the Generator interface.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	assets, err := g.client.GenerateImages(ctx, genai.ImageRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Quantity:       req.Quantity,
		AspectRatio:    req.AspectRatio,
		Seed:           req.Seed,
		ReferenceURLs:  req.ReferenceURLs,
		RequestID:      req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Asset, len(assets))
	for i, asset := range assets {
		out[i] = Asset{
			URL:    asset.URL,
			Format: normalizeFormat(asset.Format),
			Width:  asset.Width,
			Height: asset.Height,
			Data:   asset.Data,
			Seed:   req.Seed,
		}
	}
	return out, nil
}

var _ Generator = (*GeminiGenerator)(nil)
