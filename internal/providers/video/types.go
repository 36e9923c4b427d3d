package video

import "context"

// GenerateRequest is the normalized request passed to any video provider.
type GenerateRequest struct {
	Prompt          string
	NegativePrompt  string
	DurationSeconds int
	StartFrameURL   string
	EndFrameURL     string
	Seed            *int64
	RequestID       string
}

// Asset represents one generated video clip. LastFrame, when present, is a
// PNG of the final frame so the next clip in a sequence can chain from it.
type Asset struct {
	URL       string
	Format    string
	Length    int
	Data      []byte
	LastFrame []byte
}

// Generator is the contract implemented by all video providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
