package prompt

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scenestudio/internal/providers/genai"
)

// Suggestion is one enhanced prompt variant offered to the user.
type Suggestion struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// Enhancer rewrites a raw user prompt into richer variants.
type Enhancer interface {
	Enhance(ctx context.Context, raw string) ([]Suggestion, error)
}

// StaticEnhancer produces deterministic variants without a remote call. It
// is the fallback when no text model is configured.
type StaticEnhancer struct{}

// NewStaticEnhancer constructs the offline enhancer.
func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

var styleSuffixes = []struct {
	title  string
	suffix string
}{
	{"Cinematic", "cinematic lighting, shallow depth of field, film grain"},
	{"Illustrated", "detailed digital illustration, vibrant colors"},
	{"Photoreal", "photorealistic, natural lighting, sharp focus"},
}

// Enhance fulfils the Enhancer interface.
func (s *StaticEnhancer) Enhance(ctx context.Context, raw string) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	titler := cases.Title(language.Und)
	base := titler.String(firstWords(raw, 4))
	if base == "" {
		base = "Untitled"
	}
	out := make([]Suggestion, 0, len(styleSuffixes))
	for _, style := range styleSuffixes {
		prompt := raw
		if prompt != "" {
			prompt += ", "
		}
		prompt += style.suffix
		out = append(out, Suggestion{Title: base + " (" + style.title + ")", Prompt: prompt})
	}
	return out, nil
}

var _ Enhancer = (*StaticEnhancer)(nil)

// GeminiEnhancer asks the text model for rewrites and falls back to the
// static variants when the call fails.
type GeminiEnhancer struct {
	client   *genai.Client
	fallback Enhancer
}

// NewGeminiEnhancer wires a model-backed enhancer with a fallback.
func NewGeminiEnhancer(client *genai.Client, fallback Enhancer) *GeminiEnhancer {
	if fallback == nil {
		fallback = NewStaticEnhancer()
	}
	return &GeminiEnhancer{client: client, fallback: fallback}
}

// Enhance fulfils the Enhancer interface.
func (g *GeminiEnhancer) Enhance(ctx context.Context, raw string) ([]Suggestion, error) {
	if g.client == nil || !g.client.HasCredentials() {
		return g.fallback.Enhance(ctx, raw)
	}
	reply, err := g.client.GenerateText(ctx, genai.ChatRequest{
		System:  "You rewrite image and video generation prompts. Return three improved variants, one per line, no numbering.",
		Message: strings.TrimSpace(raw),
	})
	if err != nil {
		return g.fallback.Enhance(ctx, raw)
	}
	titler := cases.Title(language.Und)
	var out []Suggestion
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, Suggestion{Title: titler.String(firstWords(line, 4)), Prompt: line})
		if len(out) == 3 {
			break
		}
	}
	if len(out) == 0 {
		return g.fallback.Enhance(ctx, raw)
	}
	return out, nil
}

var _ Enhancer = (*GeminiEnhancer)(nil)

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
