package qwen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scenestudio/internal/domain"
)

func TestBuildPayloadIncludesReferenceAndSeed(t *testing.T) {
	c, err := NewClient(Options{APIKey: "key", PromptExtend: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	seed := int64(42)
	payload, err := c.buildPayload(ImageRequest{
		Prompt:         "  a red fox  ",
		NegativePrompt: "blurry",
		ReferenceURL:   "https://cdn.example.com/ref.png",
		Seed:           &seed,
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	parts := payload.Input.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want text plus reference image", len(parts))
	}
	if parts[0].Text != "a red fox" {
		t.Fatalf("prompt = %q, want trimmed text", parts[0].Text)
	}
	if parts[1].Image != "https://cdn.example.com/ref.png" {
		t.Fatalf("reference = %q", parts[1].Image)
	}
	if payload.Parameters.Seed == nil || *payload.Parameters.Seed != 42 {
		t.Fatalf("seed not carried: %v", payload.Parameters.Seed)
	}
	if payload.Parameters.PromptExtend == nil || !*payload.Parameters.PromptExtend {
		t.Fatalf("prompt_extend not set")
	}
	if payload.Parameters.Size != defaultImageSize {
		t.Fatalf("size = %q, want default", payload.Parameters.Size)
	}
}

func TestBuildPayloadRejectsEmptyPrompt(t *testing.T) {
	c, _ := NewClient(Options{APIKey: "key"})
	if _, err := c.buildPayload(ImageRequest{Prompt: "   "}); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestGenerateImageWithoutCredentials(t *testing.T) {
	c, _ := NewClient(Options{})
	if c.HasCredentials() {
		t.Fatalf("expected no credentials")
	}
	if _, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "x"}); err != ErrMissingAPIKey {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestGenerateImageDownloadsResult(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc(generatePath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"output": map[string]any{
				"choices": []map[string]any{{
					"message": map[string]any{
						"content": []map[string]any{{"image": srv.URL + "/result.png"}},
					},
				}},
			},
			"usage":      map[string]int{"width": 1328, "height": 1328},
			"request_id": "req-1",
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/result.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	asset, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a fox"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(asset.Data) != "png-bytes" {
		t.Fatalf("data = %q", asset.Data)
	}
	if asset.Format != "image/png" {
		t.Fatalf("format = %q", asset.Format)
	}
	if asset.Width != 1328 || asset.Height != 1328 {
		t.Fatalf("dimensions = %dx%d", asset.Width, asset.Height)
	}
}

func TestGenerateImageMapsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "Throttling.RateQuota",
			"message": "requests throttled",
		})
	}))
	defer srv.Close()

	c, _ := NewClient(Options{APIKey: "key", BaseURL: srv.URL})
	_, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a fox"})
	provErr, ok := err.(*domain.ProviderError)
	if !ok {
		t.Fatalf("err = %T, want *domain.ProviderError", err)
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", provErr.StatusCode)
	}
	if !strings.Contains(provErr.Message, "Throttling.RateQuota") {
		t.Fatalf("message = %q, want code included", provErr.Message)
	}
}
