package video

import (
	"context"

	"scenestudio/internal/providers/genai"
)

// GeminiGenerator adapts the Gemini client to the Generator contract. Start
// and end frame references pass through as file parts so dual-frame
// conditioning survives.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator wires a Gemini-backed video generator.
func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

// Generate fulfils the Generator interface.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	asset, err := g.client.GenerateVideo(ctx, genai.VideoRequest{
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		DurationSeconds: req.DurationSeconds,
		StartFrameURL:   req.StartFrameURL,
		EndFrameURL:     req.EndFrameURL,
		RequestID:       req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Asset{
		URL:    asset.URL,
		Format: asset.Format,
		Length: asset.Length,
		Data:   asset.Data,
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
