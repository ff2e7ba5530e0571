// Package history keeps write-once snapshots of successfully completed tasks.
// Records never store embedded-binary (data URI) media references: those are
// blanked before persistence to avoid unbounded storage growth.
package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/pverdu/genstudio/task"
)

// DefaultLimit is how many records the memory log retains.
const DefaultLimit = 100

// ErrRecordNotFound is returned when a record cannot be found by ID.
var ErrRecordNotFound = errors.New("history: record not found")

// Record is an immutable snapshot taken on successful completion.
// It shares the originating task's ID.
type Record struct {
	ID           string       `json:"id"`
	Prompt       string       `json:"prompt"`
	Model        task.Model   `json:"model"`
	CreatedAt    time.Time    `json:"created_at"`
	VideoURL     string       `json:"video_url,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	Duration     int          `json:"duration,omitempty"`
	Options      task.Options `json:"options"`
}

// Log is the append-oriented port the orchestrator writes completed
// generations to. Deletion is a collaborator operation.
type Log interface {
	// Add appends a record. Embedded data URI media is blanked first.
	Add(ctx context.Context, record Record) error

	// List returns all records, newest first.
	List(ctx context.Context) ([]Record, error)

	// Delete removes one record by ID.
	Delete(ctx context.Context, id string) error

	// Clear removes all records.
	Clear(ctx context.Context) error
}

// sanitize blanks data URI media references so a record never embeds raw
// binary content.
func sanitize(r Record) Record {
	if strings.HasPrefix(r.VideoURL, "data:") {
		r.VideoURL = ""
	}
	if strings.HasPrefix(r.ImageURL, "data:") {
		r.ImageURL = ""
	}
	if strings.HasPrefix(r.ThumbnailURL, "data:") {
		r.ThumbnailURL = ""
	}
	return r
}

// Compile-time check that MemoryLog implements Log.
var _ Log = (*MemoryLog)(nil)

// MemoryLog is an in-memory Log keeping the newest records first, capped at a
// fixed limit.
type MemoryLog struct {
	mu      sync.RWMutex
	records []Record
	limit   int
}

// NewMemoryLog creates a memory log with the default retention limit.
func NewMemoryLog() *MemoryLog {
	return NewMemoryLogWithLimit(DefaultLimit)
}

// NewMemoryLogWithLimit creates a memory log retaining at most limit records.
func NewMemoryLogWithLimit(limit int) *MemoryLog {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryLog{limit: limit}
}

// Add prepends a sanitized record, evicting the oldest past the limit.
func (l *MemoryLog) Add(_ context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append([]Record{sanitize(record)}, l.records...)
	if len(l.records) > l.limit {
		l.records = l.records[:l.limit]
	}
	return nil
}

// List returns all records, newest first.
func (l *MemoryLog) List(_ context.Context) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out, nil
}

// Delete removes one record by ID.
func (l *MemoryLog) Delete(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.records {
		if r.ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return nil
		}
	}
	return ErrRecordNotFound
}

// Clear removes all records.
func (l *MemoryLog) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	return nil
}
