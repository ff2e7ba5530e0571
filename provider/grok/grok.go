// Package grok implements the provider.Adapter for the Grok video backend.
// Grok takes a JSON create body with its own aspect-ratio enumeration and a
// fixed 720P quality tier. Inline image input is a declared unsupported
// operation: the upstream API only accepts externally hosted image URLs.
package grok

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pverdu/genstudio/provider"
	"github.com/pverdu/genstudio/task"
)

// DefaultSubModel is used when the caller does not select a Grok variant.
const DefaultSubModel = "grok-video-3"

// ErrBaseURLRequired is returned when the base URL is not provided.
var ErrBaseURLRequired = errors.New("grok: base URL is required")

// ratioValues translates canonical aspect ratios to Grok's 3:2-family
// enumeration. Unmapped ratios fall back to the landscape default.
var ratioValues = map[task.AspectRatio]string{
	task.Ratio16x9: "3:2",
	task.Ratio9x16: "2:3",
	task.Ratio1x1:  "1:1",
}

const defaultRatio = "3:2"

// quality is the only tier the endpoint accepts.
const quality = "720P"

// Adapter is the Grok implementation of provider.Adapter.
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

// WithSubModel selects the Grok model variant.
func WithSubModel(subModel string) Option {
	return func(a *Adapter) {
		a.subModel = subModel
	}
}

// New creates a Grok adapter.
func New(baseURL string, opts ...Option) (*Adapter, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	a := &Adapter{
		baseURL:    baseURL,
		subModel:   DefaultSubModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type createRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	AspectRatio string   `json:"aspect_ratio"`
	Size        string   `json:"size"`
	Images      []string `json:"images"`
}

type createResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type queryResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	CoverURL string `json:"cover_url"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Create submits a text-only generation job.
func (a *Adapter) Create(ctx context.Context, token, prompt string, opts task.Options) (provider.Handle, error) {
	ratio, ok := ratioValues[opts.AspectRatio]
	if !ok {
		ratio = defaultRatio
	}

	body := createRequest{
		Model:       a.subModel,
		Prompt:      prompt,
		AspectRatio: ratio,
		Size:        quality,
		Images:      []string{},
	}

	var resp createResponse
	url := fmt.Sprintf("%s/video/create", a.baseURL)
	if err := provider.DoJSON(ctx, a.httpClient, http.MethodPost, url, token, body, &resp); err != nil {
		return provider.Handle{}, fmt.Errorf("grok: create video: %w", err)
	}

	if resp.ID == "" {
		return provider.Handle{}, provider.ErrNoTaskIDReturned
	}

	return provider.Handle{
		TaskID: resp.ID,
		Status: provider.NormalizeStatus(resp.Status),
	}, nil
}

// CreateWithImage always fails before any network call: the endpoint cannot
// accept inline image bytes and this system has no image-hosting capability.
func (a *Adapter) CreateWithImage(_ context.Context, _, _, _ string, _ task.Options) (provider.Handle, error) {
	return provider.Handle{}, fmt.Errorf("grok: image-to-video: %w", provider.ErrImageInputUnsupported)
}

// Query fetches the status of a generation job.
func (a *Adapter) Query(ctx context.Context, token, taskID string) (provider.QueryResult, error) {
	if taskID == "" {
		return provider.QueryResult{}, provider.ErrTaskIDRequired
	}

	var resp queryResponse
	url := fmt.Sprintf("%s/video/query?id=%s", a.baseURL, taskID)
	if err := provider.DoJSON(ctx, a.httpClient, http.MethodGet, url, token, nil, &resp); err != nil {
		return provider.QueryResult{}, fmt.Errorf("grok: query task: %w", err)
	}

	result := provider.QueryResult{
		Status:       provider.NormalizeStatus(resp.Status),
		VideoURL:     resp.VideoURL,
		ThumbnailURL: resp.CoverURL,
	}
	if resp.Error != nil {
		result.ErrorMessage = resp.Error.Message
	}
	return result, nil
}

// Compile-time check that Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
