package provider

import "github.com/pverdu/genstudio/task"

// statusTable maps the vendor status vocabularies observed in practice onto
// the canonical four-state set. Two casing conventions coexist upstream:
// lower-case OpenAI-style tokens and upper-case queue-style tokens.
var statusTable = map[string]task.Status{
	"pending":    task.StatusPending,
	"processing": task.StatusProcessing,
	"succeeded":  task.StatusCompleted,
	"completed":  task.StatusCompleted,
	"failed":     task.StatusFailed,
	"cancelled":  task.StatusFailed,
	"SUBMITTED":  task.StatusPending,
	"QUEUED":     task.StatusPending,
	"PROCESSING": task.StatusProcessing,
	"COMPLETED":  task.StatusCompleted,
	"FAILED":     task.StatusFailed,
}

// NormalizeStatus maps an arbitrary vendor status token onto the canonical
// lifecycle. Unrecognized tokens map to pending, never to a terminal state,
// so the poller cannot prematurely declare success or permanent failure on an
// unfamiliar token.
func NormalizeStatus(vendorStatus string) task.Status {
	if s, ok := statusTable[vendorStatus]; ok {
		return s
	}
	return task.StatusPending
}
