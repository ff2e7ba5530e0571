package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pverdu/genstudio/provider"
	"github.com/pverdu/genstudio/task"
)

// scriptAdapter returns one canned QueryResult (or error) per Query call,
// repeating the last entry once the script runs out.
type scriptAdapter struct {
	script []scriptStep
	calls  int
}

type scriptStep struct {
	result provider.QueryResult
	err    error
}

func (s *scriptAdapter) Create(context.Context, string, string, task.Options) (provider.Handle, error) {
	panic("not used")
}

func (s *scriptAdapter) CreateWithImage(context.Context, string, string, string, task.Options) (provider.Handle, error) {
	panic("not used")
}

func (s *scriptAdapter) Query(context.Context, string, string) (provider.QueryResult, error) {
	step := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		step = s.script[s.calls]
	}
	s.calls++
	return step.result, step.err
}

// instantSleep replaces the real sleep and records each requested interval.
func instantSleep(intervals *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*intervals = append(*intervals, d)
		return nil
	}
}

func ptr(f float64) *float64 { return &f }

func TestPoll_CompletedShortCircuits(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{
			Status:   task.StatusCompleted,
			VideoURL: "https://cdn.example.com/clip.mp4",
			Duration: 8,
		}},
	}}

	var slept []time.Duration
	p := New()
	p.sleep = instantSleep(&slept)

	result, err := p.Poll(context.Background(), "tok", "job-1", adapter, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != task.StatusCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if result.VideoURL != "https://cdn.example.com/clip.mp4" {
		t.Errorf("VideoURL = %q", result.VideoURL)
	}
	if result.Progress != 100 {
		t.Errorf("Progress = %v, want 100", result.Progress)
	}
	if result.Duration != 8 {
		t.Errorf("Duration = %d, want 8", result.Duration)
	}
	if adapter.calls != 1 {
		t.Errorf("Query called %d times, want 1", adapter.calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %d times after terminal status, want 0", len(slept))
	}
}

func TestPoll_FailedCarriesVendorMessage(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{Status: task.StatusFailed, ErrorMessage: "content policy violation"}},
	}}

	p := New()
	p.sleep = instantSleep(&[]time.Duration{})

	result, err := p.Poll(context.Background(), "tok", "job-1", adapter, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != task.StatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
	if result.ErrorMessage != "content policy violation" {
		t.Errorf("ErrorMessage = %q", result.ErrorMessage)
	}
}

func TestPoll_FailedWithoutMessageGetsGenericReason(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{Status: task.StatusFailed}},
	}}

	p := New()
	p.sleep = instantSleep(&[]time.Duration{})

	result, err := p.Poll(context.Background(), "tok", "job-1", adapter, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ErrorMessage != "generation failed" {
		t.Errorf("ErrorMessage = %q, want generic reason", result.ErrorMessage)
	}
}

func TestPoll_BackoffGrowsEachCleanTick(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{Status: task.StatusPending}},
		{result: provider.QueryResult{Status: task.StatusProcessing}},
		{result: provider.QueryResult{Status: task.StatusProcessing}},
		{result: provider.QueryResult{Status: task.StatusCompleted, VideoURL: "u"}},
	}}

	var slept []time.Duration
	p := New(WithInterval(100*time.Millisecond), WithMultiplier(2))
	p.sleep = instantSleep(&slept)

	if _, err := p.Poll(context.Background(), "tok", "job-1", adapter, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("slept %d times, want %d: %v", len(slept), len(want), slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("interval[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestPoll_TransientErrorDoesNotGrowInterval(t *testing.T) {
	queryErr := errors.New("connection reset")
	adapter := &scriptAdapter{script: []scriptStep{
		{err: queryErr},
		{err: queryErr},
		{result: provider.QueryResult{Status: task.StatusCompleted, VideoURL: "u"}},
	}}

	var slept []time.Duration
	p := New(WithInterval(100*time.Millisecond), WithMultiplier(2))
	p.sleep = instantSleep(&slept)

	result, err := p.Poll(context.Background(), "tok", "job-1", adapter, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != task.StatusCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}

	// Both error-path sleeps use the unchanged base interval.
	want := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("slept %d times, want %d: %v", len(slept), len(want), slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("interval[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestPoll_QueryErrorOnLastAttemptPropagates(t *testing.T) {
	queryErr := errors.New("connection reset")
	adapter := &scriptAdapter{script: []scriptStep{{err: queryErr}}}

	p := New(WithMaxAttempts(3))
	p.sleep = instantSleep(&[]time.Duration{})

	_, err := p.Poll(context.Background(), "tok", "job-1", adapter, nil)
	if !errors.Is(err, queryErr) {
		t.Fatalf("err = %v, want wrapped query error", err)
	}
	if adapter.calls != 3 {
		t.Errorf("Query called %d times, want 3", adapter.calls)
	}
}

func TestPoll_AttemptBudgetExhaustedReportsTimeout(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{Status: task.StatusProcessing}},
	}}

	p := New(WithMaxAttempts(5))
	p.sleep = instantSleep(&[]time.Duration{})

	result, err := p.Poll(context.Background(), "tok", "job-1", adapter, nil)
	if err != nil {
		t.Fatalf("timeout must be a failed result, not an error: %v", err)
	}
	if result.Status != task.StatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
	if result.ErrorMessage != "task timed out" {
		t.Errorf("ErrorMessage = %q, want task timed out", result.ErrorMessage)
	}
	if adapter.calls != 5 {
		t.Errorf("Query called %d times, want 5", adapter.calls)
	}
}

func TestPoll_ProgressNeverDecreases(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{Status: task.StatusProcessing, Progress: ptr(40)}},
		{result: provider.QueryResult{Status: task.StatusProcessing, Progress: ptr(25)}},
		{result: provider.QueryResult{Status: task.StatusProcessing, Progress: ptr(60)}},
		{result: provider.QueryResult{Status: task.StatusCompleted, VideoURL: "u"}},
	}}

	var seen []float64
	p := New()
	p.sleep = instantSleep(&[]time.Duration{})

	_, err := p.Poll(context.Background(), "tok", "job-1", adapter, func(_ task.Status, progress float64) {
		seen = append(seen, progress)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 4 {
		t.Fatalf("observed %d ticks, want 4: %v", len(seen), seen)
	}
	want := []float64{40, 40, 60, 100}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestPoll_SyntheticProgressFromAttempts(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{Status: task.StatusProcessing}},
		{result: provider.QueryResult{Status: task.StatusProcessing}},
		{result: provider.QueryResult{Status: task.StatusProcessing}},
	}}

	var seen []float64
	p := New(WithMaxAttempts(10))
	p.sleep = instantSleep(&[]time.Duration{})

	result, err := p.Poll(context.Background(), "tok", "job-1", adapter, func(_ task.Status, progress float64) {
		seen = append(seen, progress)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != task.StatusFailed {
		t.Fatalf("Status = %q, want failed on timeout", result.Status)
	}

	// attempts/maxAttempts * 100 for the first ticks.
	if seen[0] != 0 || seen[1] != 10 || seen[2] != 20 {
		t.Errorf("synthetic progress = %v, want [0 10 20 ...]", seen[:3])
	}
}

func TestPoll_ContextCancellation(t *testing.T) {
	adapter := &scriptAdapter{script: []scriptStep{
		{result: provider.QueryResult{Status: task.StatusProcessing}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	p := New()
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := p.Poll(ctx, "tok", "job-1", adapter, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
