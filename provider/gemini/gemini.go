// Package gemini implements the provider.Adapter for the Gemini image backend.
//
// Generation is synchronous: the create call already carries the result, so
// the returned handle is terminal and never polled. The adapter first tries
// the dedicated image-generation endpoint and, when that answers with a
// not-found or bad-request class of error, falls back to the chat-completion
// endpoint and extracts the image reference from whichever reply shape the
// vendor chose: a direct data URI, an HTTP URL, inline markdown image syntax,
// a typed content-part array, or a top-level field.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pverdu/genstudio/provider"
	"github.com/pverdu/genstudio/task"
	"github.com/pverdu/genstudio/task/id"
)

// DefaultSubModel is used when the caller does not select a Gemini variant.
const DefaultSubModel = "gemini-3-pro-image-preview"

// ErrBaseURLRequired is returned when the base URL is not provided.
var ErrBaseURLRequired = errors.New("gemini: base URL is required")

// resolutionHeights maps resolution tiers to pixel heights.
var resolutionHeights = map[string]int{
	"720P":  720,
	"1080P": 1080,
	"2K":    1440,
	"4K":    2160,
}

const defaultHeight = 1440

// ratioDimensions holds the width/height proportions for each canonical ratio.
var ratioDimensions = map[task.AspectRatio][2]int{
	task.Ratio1x1:  {1, 1},
	task.Ratio16x9: {16, 9},
	task.Ratio9x16: {9, 16},
	task.Ratio4x3:  {4, 3},
	task.Ratio3x4:  {3, 4},
}

// markdownImage matches inline markdown image syntax and captures the URL.
var markdownImage = regexp.MustCompile(`!\[.*?\]\(([^)]+)\)`)

// Adapter is the Gemini implementation of provider.Adapter.
type Adapter struct {
	baseURL    string
	subModel   string
	httpClient *http.Client
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		a.httpClient = c
	}
}

// WithSubModel selects the Gemini model variant.
func WithSubModel(subModel string) Option {
	return func(a *Adapter) {
		a.subModel = subModel
	}
}

// New creates a Gemini adapter.
func New(baseURL string, opts ...Option) (*Adapter, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	a := &Adapter{
		baseURL:    baseURL,
		subModel:   DefaultSubModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// generationsRequest is the dedicated image-generation request body.
type generationsRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	Size        string `json:"size"`
	N           int    `json:"n"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// chatRequest is the chat-completion fallback request body.
type chatRequest struct {
	Model              string        `json:"model"`
	Messages           []chatMessage `json:"messages"`
	ResponseModalities []string      `json:"response_modalities"`
	Size               string        `json:"size"`
	AspectRatio        string        `json:"aspect_ratio"`
	NegativePrompt     string        `json:"negative_prompt"`
	Temperature        float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// imageResponse covers both reply shapes the backend produces.
type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	ImageURL string `json:"image_url"`
	URL      string `json:"url"`
}

// contentPart is one element of a typed content array.
type contentPart struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// Create generates an image. The returned handle is already terminal and
// carries the image URL; there is nothing to poll afterwards.
func (a *Adapter) Create(ctx context.Context, token, prompt string, opts task.Options) (provider.Handle, error) {
	ratio := opts.AspectRatio
	if ratio == "" {
		ratio = task.Ratio1x1
	}
	size := calculateSize(opts.Resolution, ratio)

	body := generationsRequest{
		Model:  a.subModel,
		Prompt: prompt,
		Size:   size,
		N:      1,
	}
	// The dedicated endpoint treats 16:9 as its implicit default.
	if ratio != task.Ratio16x9 {
		body.AspectRatio = string(ratio)
	}

	var resp imageResponse
	url := fmt.Sprintf("%s/images/generations", a.baseURL)
	err := provider.DoJSON(ctx, a.httpClient, http.MethodPost, url, token, body, &resp)
	if err != nil {
		var statusErr *provider.StatusError
		if !errors.As(err, &statusErr) ||
			(statusErr.StatusCode != http.StatusNotFound && statusErr.StatusCode != http.StatusBadRequest) {
			return provider.Handle{}, fmt.Errorf("gemini: generate image: %w", err)
		}
		// Endpoint not available here; retry through chat completions.
		resp = imageResponse{}
		if err := a.createViaChat(ctx, token, prompt, size, ratio, opts.NegativePrompt, &resp); err != nil {
			return provider.Handle{}, err
		}
	}

	imageURL := extractImageURL(&resp)
	if imageURL == "" {
		return provider.Handle{}, provider.ErrNoImageReturned
	}

	return provider.Handle{
		TaskID:   id.Generate(),
		Status:   task.StatusCompleted,
		ImageURL: imageURL,
	}, nil
}

func (a *Adapter) createViaChat(ctx context.Context, token, prompt, size string, ratio task.AspectRatio, negativePrompt string, resp *imageResponse) error {
	body := chatRequest{
		Model:              a.subModel,
		Messages:           []chatMessage{{Role: "user", Content: prompt}},
		ResponseModalities: []string{"image"},
		Size:               size,
		AspectRatio:        string(ratio),
		NegativePrompt:     negativePrompt,
		Temperature:        0.7,
	}

	url := fmt.Sprintf("%s/chat/completions", a.baseURL)
	if err := provider.DoJSON(ctx, a.httpClient, http.MethodPost, url, token, body, resp); err != nil {
		return fmt.Errorf("gemini: generate image via chat: %w", err)
	}
	return nil
}

// CreateWithImage always fails before any network call: the image endpoint
// takes no inline input image.
func (a *Adapter) CreateWithImage(_ context.Context, _, _, _ string, _ task.Options) (provider.Handle, error) {
	return provider.Handle{}, fmt.Errorf("gemini: image input: %w", provider.ErrImageInputUnsupported)
}

// Query exists to satisfy provider.Adapter. Generation is synchronous, so a
// handle from Create is already terminal and the poller never reaches here.
func (a *Adapter) Query(_ context.Context, _, taskID string) (provider.QueryResult, error) {
	if taskID == "" {
		return provider.QueryResult{}, provider.ErrTaskIDRequired
	}
	return provider.QueryResult{Status: task.StatusCompleted}, nil
}

// extractImageURL pulls an image reference out of the possible reply shapes.
func extractImageURL(resp *imageResponse) string {
	// Dedicated endpoint: data array
	if len(resp.Data) > 0 && resp.Data[0].URL != "" {
		return resp.Data[0].URL
	}

	// Chat shape: typed parts, plain string, or markdown
	if len(resp.Choices) > 0 {
		raw := resp.Choices[0].Message.Content

		var parts []contentPart
		if err := json.Unmarshal(raw, &parts); err == nil {
			for _, p := range parts {
				if p.Type == "image_url" && p.ImageURL.URL != "" {
					return p.ImageURL.URL
				}
			}
		}

		var content string
		if err := json.Unmarshal(raw, &content); err == nil && content != "" {
			if strings.HasPrefix(content, "data:image") || strings.HasPrefix(content, "http") {
				return content
			}
			if m := markdownImage.FindStringSubmatch(content); m != nil {
				return m[1]
			}
		}
	}

	// Vendor-specific top-level fields
	if resp.ImageURL != "" {
		return resp.ImageURL
	}
	return resp.URL
}

// calculateSize derives the WxH size token from a resolution tier and ratio.
func calculateSize(resolution string, ratio task.AspectRatio) string {
	height, ok := resolutionHeights[resolution]
	if !ok {
		height = defaultHeight
	}

	dims, ok := ratioDimensions[ratio]
	if !ok {
		dims = [2]int{1, 1}
	}

	width := int(math.Round(float64(height) * float64(dims[0]) / float64(dims[1])))
	return fmt.Sprintf("%dx%d", width, height)
}

// Compile-time check that Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
