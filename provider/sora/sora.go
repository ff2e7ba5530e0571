// Package sora implements the provider.Adapter for the Sora video backend.
// Sora shares the OpenAI-format multipart create endpoint but supports the
// full canonical ratio set and reports no progress field on query.
package sora

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pverdu/genstudio/provider"
	"github.com/pverdu/genstudio/task"
)

// DefaultSubModel is used when the caller does not select a Sora variant.
const DefaultSubModel = "sora-2-all"

// defaultDuration is the clip length in seconds when none is requested.
const defaultDuration = 10

// ErrBaseURLRequired is returned when the base URL is not provided.
var ErrBaseURLRequired = errors.New("sora: base URL is required")

// ratioSizes translates canonical aspect ratios to wire size tokens.
var ratioSizes = map[task.AspectRatio]string{
	task.Ratio16x9: "16x9",
	task.Ratio9x16: "9x16",
	task.Ratio1x1:  "1x1",
	task.Ratio4x3:  "4x3",
	task.Ratio3x4:  "3x4",
}

const defaultSize = "16x9"

// Adapter is the Sora implementation of provider.Adapter.
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

// WithSubModel selects the Sora model variant.
func WithSubModel(subModel string) Option {
	return func(a *Adapter) {
		a.subModel = subModel
	}
}

// New creates a Sora adapter.
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

type createResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type queryResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Create submits a text-only generation job.
func (a *Adapter) Create(ctx context.Context, token, prompt string, opts task.Options) (provider.Handle, error) {
	return a.create(ctx, token, prompt, nil, opts)
}

// CreateWithImage submits a generation job with a reference image.
func (a *Adapter) CreateWithImage(ctx context.Context, token, prompt, imageDataURI string, opts task.Options) (provider.Handle, error) {
	data, _, err := provider.DecodeDataURL(imageDataURI)
	if err != nil {
		return provider.Handle{}, fmt.Errorf("sora: decode input image: %w", err)
	}
	file := &provider.FilePart{
		FieldName: "input_reference",
		FileName:  "reference.png",
		Data:      data,
	}
	return a.create(ctx, token, prompt, file, opts)
}

func (a *Adapter) create(ctx context.Context, token, prompt string, file *provider.FilePart, opts task.Options) (provider.Handle, error) {
	duration := opts.Duration
	if duration <= 0 {
		duration = defaultDuration
	}

	size, ok := ratioSizes[opts.AspectRatio]
	if !ok {
		size = defaultSize
	}

	fields := []provider.MultipartField{
		{Name: "model", Value: a.subModel},
		{Name: "prompt", Value: prompt},
		{Name: "seconds", Value: strconv.Itoa(duration)},
		{Name: "watermark", Value: "false"},
		{Name: "size", Value: size},
	}

	var resp createResponse
	url := fmt.Sprintf("%s/videos", a.baseURL)
	if err := provider.DoMultipart(ctx, a.httpClient, url, token, fields, file, &resp); err != nil {
		return provider.Handle{}, fmt.Errorf("sora: create video: %w", err)
	}

	if resp.ID == "" {
		return provider.Handle{}, provider.ErrNoTaskIDReturned
	}

	return provider.Handle{
		TaskID: resp.ID,
		Status: provider.NormalizeStatus(resp.Status),
	}, nil
}

// Query fetches the status of a generation job through the unified query endpoint.
func (a *Adapter) Query(ctx context.Context, token, taskID string) (provider.QueryResult, error) {
	if taskID == "" {
		return provider.QueryResult{}, provider.ErrTaskIDRequired
	}

	var resp queryResponse
	url := fmt.Sprintf("%s/video/query?id=%s", a.baseURL, taskID)
	if err := provider.DoJSON(ctx, a.httpClient, http.MethodGet, url, token, nil, &resp); err != nil {
		return provider.QueryResult{}, fmt.Errorf("sora: query task: %w", err)
	}

	result := provider.QueryResult{
		Status:   provider.NormalizeStatus(resp.Status),
		VideoURL: resp.VideoURL,
	}
	if resp.Error != nil {
		result.ErrorMessage = resp.Error.Message
	}
	return result, nil
}

// Compile-time check that Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
