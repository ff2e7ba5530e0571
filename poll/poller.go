// Package poll drives repeated status queries for one vendor job until it
// reaches a terminal state, the attempt budget is exhausted, or the context
// is cancelled. A single Poll invocation resolves exactly one job serially.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/pverdu/genstudio/provider"
	"github.com/pverdu/genstudio/task"
)

// Defaults mirror the polling configuration the system has always used:
// a 2s first interval grown by 1.1x each clean tick, for up to 180 attempts.
const (
	DefaultInterval    = 2 * time.Second
	DefaultMultiplier  = 1.1
	DefaultMaxAttempts = 180
)

// timeoutMessage is the fixed message reported when the attempt budget runs
// out without a terminal vendor status.
const timeoutMessage = "task timed out"

// genericFailureMessage is used when a vendor reports failure without a reason.
const genericFailureMessage = "generation failed"

// ProgressFunc observes every poll tick, including non-terminal ones, so the
// caller can render incremental feedback. It must not block.
type ProgressFunc func(status task.Status, progress float64)

// Result is the terminal outcome of a poll run.
type Result struct {
	// Status is completed or failed; a timeout reports failed.
	Status task.Status
	// VideoURL is the resolved media location on success.
	VideoURL string
	// ThumbnailURL is an optional preview image on success.
	ThumbnailURL string
	// ErrorMessage carries the failure reason (vendor's, or the timeout message).
	ErrorMessage string
	// Progress is the last reported progress; 100 on success.
	Progress float64
	// Duration is the clip length in seconds, when the vendor reported one.
	Duration int
}

// Poller runs the backoff polling loop. The zero value is not usable; create
// one with New.
type Poller struct {
	interval    time.Duration
	multiplier  float64
	maxAttempts int

	// sleep is swapped in tests to observe backoff behavior.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the initial poll interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMultiplier sets the backoff growth factor applied after each clean
// non-terminal tick. Values at or below 1 are ignored.
func WithMultiplier(m float64) Option {
	return func(p *Poller) {
		if m > 1 {
			p.multiplier = m
		}
	}
}

// WithMaxAttempts bounds the number of status queries for one job.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// New creates a Poller with the default polling configuration.
func New(opts ...Option) *Poller {
	p := &Poller{
		interval:    DefaultInterval,
		multiplier:  DefaultMultiplier,
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll queries the adapter until the job reaches a terminal state.
//
// Terminal vendor statuses return immediately without another sleep or query.
// Query errors are treated as transient while attempts remain: the loop
// sleeps at the current interval and continues without growing the backoff.
// The final error return is non-nil only for context cancellation or a query
// error on the last attempt; timeouts are reported as a failed Result.
func (p *Poller) Poll(ctx context.Context, token, taskID string, adapter provider.Adapter, onProgress ProgressFunc) (Result, error) {
	attempts := 0
	interval := p.interval
	lastProgress := 0.0
	reported := false

	for attempts < p.maxAttempts {
		result, err := adapter.Query(ctx, token, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("poll: %w", ctx.Err())
			}
			if attempts >= p.maxAttempts-1 {
				return Result{}, fmt.Errorf("poll: query task %s: %w", taskID, err)
			}
			if err := p.sleep(ctx, interval); err != nil {
				return Result{}, fmt.Errorf("poll: %w", err)
			}
			attempts++
			continue
		}

		// Prefer vendor-reported progress; otherwise derive a linear
		// estimate from the attempt budget. Never report less than a
		// previous tick for the same job.
		progress := float64(attempts) / float64(p.maxAttempts) * 100
		if result.Progress != nil {
			progress = *result.Progress
		}
		if reported && progress < lastProgress {
			progress = lastProgress
		}
		lastProgress = progress
		reported = true

		if onProgress != nil {
			onProgress(result.Status, progress)
		}

		switch result.Status {
		case task.StatusCompleted:
			return Result{
				Status:       task.StatusCompleted,
				VideoURL:     result.VideoURL,
				ThumbnailURL: result.ThumbnailURL,
				Progress:     100,
				Duration:     result.Duration,
			}, nil
		case task.StatusFailed:
			msg := result.ErrorMessage
			if msg == "" {
				msg = genericFailureMessage
			}
			return Result{
				Status:       task.StatusFailed,
				ErrorMessage: msg,
				Progress:     progress,
			}, nil
		}

		if err := p.sleep(ctx, interval); err != nil {
			return Result{}, fmt.Errorf("poll: %w", err)
		}
		interval = time.Duration(float64(interval) * p.multiplier)
		attempts++
	}

	return Result{
		Status:       task.StatusFailed,
		ErrorMessage: timeoutMessage,
		Progress:     lastProgress,
	}, nil
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
