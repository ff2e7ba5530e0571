// Package generate orchestrates batches of generation jobs. It owns the only
// mutable shared state the core writes: per-job tasks in the task store and,
// on success, write-once history records.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pverdu/genstudio/history"
	"github.com/pverdu/genstudio/poll"
	"github.com/pverdu/genstudio/provider"
	"github.com/pverdu/genstudio/task"
)

// Static errors for input validation. All are rejected synchronously before
// any task is created or any network call is made.
var (
	// ErrTokenRequired is returned when the auth token is blank.
	ErrTokenRequired = errors.New("generate: auth token is required")
	// ErrNoPrompts is returned when the resolved prompt list is empty.
	ErrNoPrompts = errors.New("generate: at least one prompt is required")
	// ErrUnsupportedModel is returned when no adapter is registered for the model.
	ErrUnsupportedModel = errors.New("generate: unsupported model")
)

// BatchPrompt is one entry of a pre-built batch. Blank prompts are filtered
// out during expansion.
type BatchPrompt struct {
	// ID identifies the entry to the caller. Unused by the core.
	ID string
	// Prompt is the generation prompt.
	Prompt string
	// ImageData optionally overrides the request-level input image (data URI).
	ImageData string
}

// Request describes one generation request. It is consumed once and discarded.
type Request struct {
	// Model selects the generation backend.
	Model task.Model `validate:"required"`
	// SubModel is the vendor model variant; blank uses the adapter default.
	SubModel string
	// Prompt is the single-generation prompt. Ignored when Prompts is set.
	Prompt string
	// Prompts is the ordered batch; blank entries are dropped.
	Prompts []BatchPrompt
	// Options is the vendor parameter bag applied to every job.
	Options task.Options
	// ImageData is the input image as a data URI, shared by all prompts that
	// do not carry their own.
	ImageData string
	// ImageData2 is the optional second frame for start/end-frame input.
	ImageData2 string
	// ImageType says how input images are used.
	ImageType task.ImageType
	// OnProgress observes combined batch progress: completed prompts count in
	// full, the current prompt contributes its fraction, so overall progress
	// advances monotonically across the batch instead of resetting per prompt.
	OnProgress poll.ProgressFunc
}

// Service is the batch orchestrator. It processes prompts strictly in order,
// one job fully resolved before the next create call, and guarantees that a
// failing prompt never aborts the rest of the batch.
type Service struct {
	store    task.Store
	history  history.Log
	adapters map[task.Model]provider.Adapter
	poller   *poll.Poller
	validate *validator.Validate
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAdapter registers the adapter used for a model.
func WithAdapter(model task.Model, adapter provider.Adapter) Option {
	return func(s *Service) {
		s.adapters[model] = adapter
	}
}

// WithPoller replaces the default poller.
func WithPoller(p *poll.Poller) Option {
	return func(s *Service) {
		if p != nil {
			s.poller = p
		}
	}
}

// NewService creates a batch orchestrator writing to the given stores.
func NewService(store task.Store, historyLog history.Log, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		history:  historyLog,
		adapters: make(map[task.Model]provider.Adapter),
		poller:   poll.New(),
		validate: validator.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs a generation request to completion, creating one task per
// prompt. The returned error covers synchronous input rejection only:
// per-prompt failures are recorded on that prompt's task and never propagate
// past the batch boundary.
func (s *Service) Generate(ctx context.Context, token string, req Request) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenRequired
	}
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("generate: invalid request: %w", err)
	}
	if !req.Model.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedModel, req.Model)
	}
	adapter, ok := s.adapters[req.Model]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedModel, req.Model)
	}

	prompts := expandPrompts(req)
	if len(prompts) == 0 {
		return ErrNoPrompts
	}

	s.logger.Info("starting generation batch",
		slog.String("model", string(req.Model)),
		slog.Int("prompts", len(prompts)),
	)

	for i, bp := range prompts {
		if ctx.Err() != nil {
			s.logger.Warn("batch cancelled",
				slog.Int("remaining", len(prompts)-i),
			)
			return nil
		}
		s.runJob(ctx, token, adapter, req, bp, i, len(prompts))
	}

	return nil
}

// expandPrompts resolves the ordered prompt list: a pre-built batch with
// blank entries filtered out, or the single request prompt.
func expandPrompts(req Request) []BatchPrompt {
	if len(req.Prompts) > 0 {
		out := make([]BatchPrompt, 0, len(req.Prompts))
		for _, bp := range req.Prompts {
			if strings.TrimSpace(bp.Prompt) != "" {
				out = append(out, bp)
			}
		}
		return out
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil
	}
	return []BatchPrompt{{Prompt: prompt, ImageData: req.ImageData}}
}

// runJob drives one prompt from task creation through its terminal state.
// Every failure path records the error on the task and returns; nothing
// escapes to the batch loop.
func (s *Service) runJob(ctx context.Context, token string, adapter provider.Adapter, req Request, bp BatchPrompt, index, total int) {
	t := task.New(req.Model, bp.Prompt)
	t.SubModel = req.SubModel
	t.Options = req.Options

	image := bp.ImageData
	if image == "" {
		image = req.ImageData
	}
	t.ImageData = image

	// The task is observable before any network activity.
	s.saveTask(ctx, t)

	s.logger.Info("processing prompt",
		slog.String("task_id", t.ID),
		slog.Int("index", index+1),
		slog.Int("total", total),
		slog.Bool("with_image", image != ""),
	)

	var handle provider.Handle
	var err error
	if image != "" {
		handle, err = adapter.CreateWithImage(ctx, token, bp.Prompt, image, req.Options)
	} else {
		handle, err = adapter.Create(ctx, token, bp.Prompt, req.Options)
	}
	if err != nil {
		s.failTask(ctx, t, err.Error())
		return
	}

	// Synchronous vendors return a terminal handle; nothing to poll.
	if handle.Status == task.StatusCompleted && handle.ImageURL != "" {
		s.completeTask(ctx, t, "", handle.ImageURL, "", req.Options.Duration)
		s.reportBatchProgress(req, task.StatusCompleted, 100, index, total)
		return
	}

	onProgress := func(status task.Status, progress float64) {
		if err := t.SetProgress(status, progress); err == nil {
			s.saveTask(ctx, t)
		}
		s.reportBatchProgress(req, status, progress, index, total)
	}

	result, err := s.poller.Poll(ctx, token, handle.TaskID, adapter, onProgress)
	if err != nil {
		s.failTask(ctx, t, err.Error())
		return
	}

	if result.Status == task.StatusCompleted {
		duration := result.Duration
		if duration == 0 {
			duration = req.Options.Duration
		}
		s.completeTask(ctx, t, result.VideoURL, "", result.ThumbnailURL, duration)
		return
	}

	msg := result.ErrorMessage
	if msg == "" {
		msg = "generation failed"
	}
	s.failTask(ctx, t, msg)
}

// reportBatchProgress folds one job's progress into the combined batch metric.
func (s *Service) reportBatchProgress(req Request, status task.Status, progress float64, index, total int) {
	if req.OnProgress == nil {
		return
	}
	overall := (float64(index)*100 + progress) / float64(total)
	req.OnProgress(status, overall)
}

func (s *Service) completeTask(ctx context.Context, t *task.Task, videoURL, imageURL, thumbnailURL string, duration int) {
	if err := t.Complete(videoURL, imageURL, thumbnailURL); err != nil {
		s.logger.Error("failed to complete task",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.saveTask(ctx, t)

	record := history.Record{
		ID:           t.ID,
		Prompt:       t.Prompt,
		Model:        t.Model,
		CreatedAt:    t.CreatedAt,
		VideoURL:     videoURL,
		ImageURL:     imageURL,
		ThumbnailURL: thumbnailURL,
		Duration:     duration,
		Options:      t.Options,
	}
	if err := s.history.Add(ctx, record); err != nil {
		s.logger.Error("failed to append history record",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("generation completed",
		slog.String("task_id", t.ID),
	)
}

func (s *Service) failTask(ctx context.Context, t *task.Task, msg string) {
	if err := t.Fail(msg); err != nil {
		s.logger.Error("failed to mark task failed",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.saveTask(ctx, t)

	s.logger.Warn("generation failed",
		slog.String("task_id", t.ID),
		slog.String("error", msg),
	)
}

func (s *Service) saveTask(ctx context.Context, t *task.Task) {
	if err := s.store.Save(ctx, t); err != nil {
		s.logger.Error("failed to save task",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}
