// Package provider defines the common contract for generative-media backends.
// Each vendor adapter owns its own wire encoding and is the single place that
// translates canonical aspect ratios and options into vendor values; retry is
// never the adapter's responsibility.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pverdu/genstudio/task"
)

// Static errors for provider operations.
var (
	// ErrTaskIDRequired is returned when a query is issued without a task ID.
	ErrTaskIDRequired = errors.New("provider: task ID is required")
	// ErrNoTaskIDReturned is returned when a create response contains no task ID.
	ErrNoTaskIDReturned = errors.New("provider: create failed: no task ID returned")
	// ErrImageInputUnsupported is returned by vendors that cannot accept inline
	// image bytes. Raised before any network call.
	ErrImageInputUnsupported = errors.New("provider: image input requires an externally hosted URL and is not supported for this vendor")
	// ErrNoImageReturned is returned when an image response contains no usable image reference.
	ErrNoImageReturned = errors.New("provider: no image URL in response")
)

// Handle is the vendor job handle returned by a create call.
// It is consumed exclusively by the poller for that single job.
type Handle struct {
	// TaskID is the vendor-assigned job identifier.
	TaskID string
	// Status is the normalized status at creation time.
	Status task.Status
	// ImageURL is set only by synchronous image vendors whose create call
	// already carries the result.
	ImageURL string
}

// QueryResult is the normalized outcome of one status query.
type QueryResult struct {
	// Status is the normalized task status.
	Status task.Status
	// Progress is the vendor-reported completion percentage, if any.
	Progress *float64
	// VideoURL is the result video location, set on completion.
	VideoURL string
	// ThumbnailURL is an optional preview image for the result.
	ThumbnailURL string
	// Duration is the clip length in seconds, when reported.
	Duration int
	// ErrorMessage carries the vendor failure reason.
	ErrorMessage string
}

// Adapter is the per-vendor translation layer between canonical request
// shapes and the vendor wire format. The orchestrator and poller depend only
// on this interface, never on vendor identity.
type Adapter interface {
	// Create submits a text-only generation job.
	Create(ctx context.Context, token, prompt string, opts task.Options) (Handle, error)

	// CreateWithImage submits a generation job with an input image supplied
	// as a data URI. The adapter decodes it to raw bytes before transmission.
	CreateWithImage(ctx context.Context, token, prompt, imageDataURI string, opts task.Options) (Handle, error)

	// Query fetches and normalizes the current status of a job.
	Query(ctx context.Context, token, taskID string) (QueryResult, error)
}

// ValidateToken reports whether a bearer token is accepted by the backend.
// Any response other than 401 counts as valid; network errors count as invalid.
func ValidateToken(ctx context.Context, client *http.Client, baseURL, token string) bool {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/video/create?limit=1", baseURL), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode != http.StatusUnauthorized
}
