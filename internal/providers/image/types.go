package image

import (
	"context"
	"strings"
)

// GenerateRequest is the normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Quantity       int
	AspectRatio    string
	Seed           *int64
	Strength       *float64
	ReferenceURLs  []string
	RequestID      string
}

// Asset represents one generated image.
type Asset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
	Seed   *int64
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Asset, error)
}

// AspectRatioSize maps an aspect ratio string to the DashScope size token.
func AspectRatioSize(aspect string) string {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return "1664*928"
	case "4:3":
		return "1472*1104"
	case "3:4":
		return "1140*1472"
	case "9:16":
		return "928*1664"
	default:
		return "1328*1328"
	}
}

func normalizeFormat(format string) string {
	format = strings.TrimSpace(strings.ToLower(format))
	if idx := strings.Index(format, ";"); idx >= 0 {
		format = strings.TrimSpace(format[:idx])
	}
	if !strings.HasPrefix(format, "image/") {
		return "image/png"
	}
	return format
}
