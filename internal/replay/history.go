package replay

import "time"

// Action identifies a job lifecycle event recorded in the history trail
type Action string

const (
	// ActionStarted marks the entry into an execution attempt
	ActionStarted Action = "ACTION_STARTED"
	// ActionMessageProcessed marks a processed batch
	ActionMessageProcessed Action = "MESSAGE_PROCESSED"
	// ActionCompleted marks a successful attempt
	ActionCompleted Action = "ACTION_COMPLETED"
	// ActionFailed marks a failed attempt
	ActionFailed Action = "ACTION_FAILED"
	// ActionCancelled marks a cancelled attempt
	ActionCancelled Action = "ACTION_CANCELLED"
	// ActionRetried marks an automatic re-queue after a failure
	ActionRetried Action = "ACTION_RETRIED"
)

// HistoryEntry is an append-only audit record of a job lifecycle event.
// Entries are owned by the job that produced them and outlive a single
// execution attempt; they are removed only by job deletion or the
// retention sweep.
type HistoryEntry struct {
	JobID     string    `json:"job_id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	// MessageDelta is the processed-count delta carried by this event
	MessageDelta int64 `json:"message_delta,omitempty"`
	// Throughput is an optional messages/sec sample
	Throughput *float64 `json:"throughput,omitempty"`
	// Details carries free-form structured context
	Details map[string]string `json:"details,omitempty"`
}
