// Package qwen implements the DashScope multimodal generation API used for
// Qwen image models.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
)

const (
	defaultBaseURL   = "https://dashscope-intl.aliyuncs.com/api/v1"
	defaultModel     = "qwen-image-plus"
	defaultImageSize = "1328*1328"
	generatePath     = "/services/aigc/multimodal-generation/generation"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// Options configures the DashScope Qwen client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	DefaultSize    string
	PromptExtend   bool
	Watermark      bool
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the DashScope Qwen image API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	defaultSize  string
	promptExtend bool
	watermark    bool
	httpClient   *http.Client
	logger       *infra.Logger
}

// ImageRequest captures the inputs for one image generation call. Seed is
// optional; nil lets the model pick. ReferenceURL, when set, is attached as
// an image part so the model preserves the referenced subject.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Size           string
	Seed           *int64
	ReferenceURL   string
	RequestID      string
}

// ImageAsset is the normalized result from the Qwen API.
type ImageAsset struct {
	URL    string
	Data   []byte
	Format string
	Width  int
	Height int
}

// Wire types for the multimodal-generation endpoint.
type apiRequest struct {
	Model      string    `json:"model"`
	Input      apiInput  `json:"input"`
	Parameters apiParams `json:"parameters"`
}

type apiInput struct {
	Messages []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string    `json:"role"`
	Content []apiPart `json:"content"`
}

type apiPart struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type apiParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	PromptExtend   *bool  `json:"prompt_extend,omitempty"`
	Watermark      *bool  `json:"watermark,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
}

type apiResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		model:        strings.TrimSpace(opts.Model),
		defaultSize:  strings.TrimSpace(opts.DefaultSize),
		promptExtend: opts.PromptExtend,
		watermark:    opts.Watermark,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.defaultSize == "" {
		c.defaultSize = defaultImageSize
	}
	if c.httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		c.logger = &discard
	}
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImage invokes the DashScope API once and returns a single image
// asset. The endpoint answers with a hosted URL; the bytes are downloaded
// eagerly so callers can persist them to their own storage.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}
	decoded, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	imageURL := firstImageURL(decoded)
	if imageURL == "" {
		return nil, errors.New("qwen: response carried no image url")
	}
	data, format, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	width, height := decoded.Usage.Width, decoded.Usage.Height
	if width == 0 || height == 0 {
		// Usage block is absent on some model versions; fall back to the bytes.
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Str("url", imageURL).
		Msg("qwen: generated image asset")
	return &ImageAsset{URL: imageURL, Data: data, Format: format, Width: width, Height: height}, nil
}

func (c *Client) buildPayload(req ImageRequest) (*apiRequest, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("qwen: prompt is required")
	}
	parts := []apiPart{{Text: prompt}}
	if ref := strings.TrimSpace(req.ReferenceURL); ref != "" {
		parts = append(parts, apiPart{Image: ref})
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = c.defaultSize
	}
	watermark := c.watermark
	params := apiParams{
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		Size:           size,
		Seed:           req.Seed,
		Watermark:      &watermark,
	}
	if c.promptExtend {
		extend := true
		params.PromptExtend = &extend
	}
	return &apiRequest{
		Model:      c.model,
		Input:      apiInput{Messages: []apiMessage{{Role: "user", Content: parts}}},
		Parameters: params,
	}, nil
}

func (c *Client) post(ctx context.Context, payload *apiRequest) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("qwen: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("qwen: read response: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &domain.ProviderError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("qwen: decode response: %w", err)
	}
	// DashScope reports failures both via HTTP status and via a code field in
	// an otherwise 200 body.
	if resp.StatusCode >= 300 || decoded.Code != "" {
		msg := decoded.Message
		if decoded.Code != "" {
			msg = fmt.Sprintf("%s (%s)", decoded.Message, decoded.Code)
		}
		if strings.TrimSpace(msg) == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &domain.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &decoded, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("qwen: invalid image url: %s", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("qwen: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: read image: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "image/png"
	}
	return data, format, nil
}

func firstImageURL(resp *apiResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, part := range choice.Message.Content {
			if u := strings.TrimSpace(part.Image); u != "" {
				return u
			}
		}
	}
	return ""
}
