// Package task provides the Task aggregate for tracking generative-media jobs.
// A Task is created in pending state before any network call, mutated by poll
// progress updates, and reaches exactly one terminal state (completed or failed).
package task

import (
	"errors"
	"sync"
	"time"

	"github.com/pverdu/genstudio/task/id"
)

// Model identifies the generation backend for a task.
type Model string

const (
	// ModelVeo generates video through the Veo multipart endpoint.
	ModelVeo Model = "veo"
	// ModelSora generates video through the Sora multipart endpoint.
	ModelSora Model = "sora"
	// ModelGrok generates video through the Grok JSON endpoint.
	ModelGrok Model = "grok"
	// ModelGemini generates images through the Gemini endpoint.
	ModelGemini Model = "gemini"
)

// IsValid returns true if the model is one of the supported backends.
func (m Model) IsValid() bool {
	switch m {
	case ModelVeo, ModelSora, ModelGrok, ModelGemini:
		return true
	default:
		return false
	}
}

// Status represents the canonical four-state task lifecycle.
// Vendor status vocabularies are normalized onto this set by the provider layer.
type Status string

const (
	// StatusPending indicates the task was created or the vendor has not started it.
	StatusPending Status = "pending"
	// StatusProcessing indicates the vendor is generating output.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the task failed, was cancelled upstream, or timed out.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrTerminalState is returned when mutating a task that already reached a terminal state.
var ErrTerminalState = errors.New("task: already in terminal state")

// AspectRatio is the application's canonical ratio set. Adapters translate
// these to vendor wire values and fall back to a vendor default for anything else.
type AspectRatio string

const (
	Ratio16x9 AspectRatio = "16:9"
	Ratio9x16 AspectRatio = "9:16"
	Ratio1x1  AspectRatio = "1:1"
	Ratio4x3  AspectRatio = "4:3"
	Ratio3x4  AspectRatio = "3:4"
)

// ImageType describes how an input image is used for image-to-video generation.
type ImageType string

const (
	// ImageTypeReference uses the image as a style/content reference.
	ImageTypeReference ImageType = "reference"
	// ImageTypeStartEnd uses images as start/end frames.
	ImageTypeStartEnd ImageType = "start-end"
)

// Options is the vendor-specific parameter bag carried by a task.
type Options struct {
	// AspectRatio is one of the canonical ratios; blank means the vendor default.
	AspectRatio AspectRatio
	// Duration is the requested clip length in seconds.
	Duration int
	// Resolution is the requested output resolution (720P, 1080P, 2K, 4K).
	Resolution string
	// NegativePrompt lists content to avoid.
	NegativePrompt string
	// AudioEnabled requests synchronized audio where the vendor supports it.
	AudioEnabled bool
}

// Position is the task's placement on the caller's canvas. Opaque to the core.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Task represents one generation job tracked from creation through terminal outcome.
type Task struct {
	mu sync.RWMutex

	// ID is the unique identifier for this task.
	ID string
	// Prompt is the text prompt the task was created with.
	Prompt string
	// Model is the generation backend.
	Model Model
	// SubModel is the vendor-specific model variant (e.g. veo_3_1-fast-4K).
	SubModel string
	// Status is the current lifecycle state.
	Status Status
	// Progress is the completion percentage (0-100). It never decreases
	// while the task is non-terminal.
	Progress float64
	// VideoURL is the result video location, set once on success.
	VideoURL string
	// ImageURL is the result image location, set once on success.
	ImageURL string
	// ThumbnailURL is an optional preview image for the result.
	ThumbnailURL string
	// ErrorMessage is set only when the task fails.
	ErrorMessage string
	// Options carries the vendor parameter bag.
	Options Options
	// ImageData is the optional input image as a data URI. Never mutated.
	ImageData string
	// Position is the caller's UI placement for this task.
	Position Position
	// CreatedAt is when the task was created. Immutable.
	CreatedAt time.Time
	// UpdatedAt is when the task was last mutated.
	UpdatedAt time.Time
	// CompletedAt is when the task reached a terminal state.
	CompletedAt time.Time
}

// New creates a pending Task with a generated ID.
func New(model Model, prompt string) *Task {
	now := time.Now()
	return &Task{
		ID:        id.Generate(),
		Prompt:    prompt,
		Model:     model,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a pending Task with the specified ID.
// Useful for testing or when the ID is externally generated.
func NewWithID(taskID string, model Model, prompt string) *Task {
	now := time.Now()
	return &Task{
		ID:        taskID,
		Prompt:    prompt,
		Model:     model,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetProgress records a poll tick. Progress is clamped to [0,100] and never
// moves backwards; terminal tasks are left untouched.
func (t *Task) SetProgress(status Status, progress float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status.IsTerminal() {
		return ErrTerminalState
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > t.Progress {
		t.Progress = progress
	}

	if status == StatusPending || status == StatusProcessing {
		t.Status = status
	}
	t.UpdatedAt = time.Now()
	return nil
}

// Complete transitions the task to completed with the resolved media URLs.
// URLs already set are not overwritten.
func (t *Task) Complete(videoURL, imageURL, thumbnailURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status.IsTerminal() {
		return ErrTerminalState
	}

	t.Status = StatusCompleted
	t.Progress = 100
	if t.VideoURL == "" {
		t.VideoURL = videoURL
	}
	if t.ImageURL == "" {
		t.ImageURL = imageURL
	}
	if t.ThumbnailURL == "" {
		t.ThumbnailURL = thumbnailURL
	}
	t.UpdatedAt = time.Now()
	t.CompletedAt = t.UpdatedAt
	return nil
}

// Fail transitions the task to failed with an error message.
func (t *Task) Fail(errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status.IsTerminal() {
		return ErrTerminalState
	}

	t.Status = StatusFailed
	t.ErrorMessage = errMsg
	t.UpdatedAt = time.Now()
	t.CompletedAt = t.UpdatedAt
	return nil
}

// GetStatus returns the current status (thread-safe).
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// GetProgress returns the current progress (thread-safe).
func (t *Task) GetProgress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Progress
}

// IsTerminal returns true if the task reached a terminal state.
func (t *Task) IsTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status.IsTerminal()
}

// Clone creates a deep copy of the task for safe reads.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &Task{
		ID:           t.ID,
		Prompt:       t.Prompt,
		Model:        t.Model,
		SubModel:     t.SubModel,
		Status:       t.Status,
		Progress:     t.Progress,
		VideoURL:     t.VideoURL,
		ImageURL:     t.ImageURL,
		ThumbnailURL: t.ThumbnailURL,
		ErrorMessage: t.ErrorMessage,
		Options:      t.Options,
		ImageData:    t.ImageData,
		Position:     t.Position,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CompletedAt:  t.CompletedAt,
	}
}
