package replay

import (
	"encoding/json"
	"time"

	"github.com/flowmesh/replayd/internal/filter"
	"github.com/flowmesh/replayd/internal/schedule"
	"github.com/flowmesh/replayd/internal/transform"
	"github.com/google/uuid"
)

// Status represents the lifecycle status of a replay job
type Status string

const (
	// StatusPending indicates the job is waiting to run
	StatusPending Status = "PENDING"
	// StatusRunning indicates an execution attempt is in progress
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the last attempt completed successfully
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the last attempt failed
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether a status admits no further automatic transitions
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether a status transition is valid.
// FAILED -> PENDING is the retry path; COMPLETED -> PENDING is the
// recurring reschedule path. CANCELLED never transitions automatically.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusFailed:
		return to == StatusPending
	case StatusCompleted:
		return to == StatusPending
	case StatusCancelled:
		return false
	default:
		return false
	}
}

// Progress is a snapshot of a job's replay progress
type Progress struct {
	// MessagesProcessed is the number of candidate records examined.
	// Monotonically non-decreasing within one execution attempt.
	MessagesProcessed int64 `json:"messages_processed"`
	// MessagesMatched is the number of records that passed the filter
	MessagesMatched int64 `json:"messages_matched"`
	// MessagesProduced is the number of records delivered to the target topic
	MessagesProduced int64 `json:"messages_produced"`
	// MessagesFailed is the number of per-record errors (counted, skipped)
	MessagesFailed int64 `json:"messages_failed"`
	// MessagesTotal is the resolved range size; nil until the range is resolved
	MessagesTotal *int64 `json:"messages_total,omitempty"`
	// Throughput is messages/sec over a trailing window
	Throughput float64 `json:"throughput"`
	// EstimatedSecondsRemaining is nil when total or throughput is unknown
	EstimatedSecondsRemaining *int64 `json:"estimated_seconds_remaining,omitempty"`
}

// Job is a request to re-deliver a bounded range of records from a source
// topic into a new destination.
type Job struct {
	ID string `json:"id"`

	// Source
	Cluster     string  `json:"cluster"`
	SourceTopic string  `json:"source_topic"`
	Partitions  []int32 `json:"partitions,omitempty"` // empty = all partitions known at start

	// Range: {StartOffset XOR StartTimestamp}, {EndOffset XOR EndTimestamp}.
	// An absent start means "from the beginning"; an absent end means
	// "until the high-water mark at attempt entry".
	StartOffset    *int64     `json:"start_offset,omitempty"`
	StartTimestamp *time.Time `json:"start_timestamp,omitempty"`
	EndOffset      *int64     `json:"end_offset,omitempty"`
	EndTimestamp   *time.Time `json:"end_timestamp,omitempty"`

	// Destination: exactly one of TargetTopic / ConsumerGroup is set.
	// A consumer-group destination repositions the group's committed offsets
	// instead of producing records.
	TargetTopic   string `json:"target_topic,omitempty"`
	ConsumerGroup string `json:"consumer_group,omitempty"`

	// Filter and transformation specs; nil means match-all / identity
	Filter    *filter.Spec    `json:"filter,omitempty"`
	Transform *transform.Spec `json:"transform,omitempty"`

	Status   Status   `json:"status"`
	Progress Progress `json:"progress"`

	// Schedule
	Schedule         schedule.Schedule `json:"schedule"`
	NextScheduledRun *time.Time        `json:"next_scheduled_run,omitempty"`
	LastScheduledRun *time.Time        `json:"last_scheduled_run,omitempty"`

	// Retry
	MaxRetries        int `json:"max_retries"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
	RetryCount        int `json:"retry_count"`

	// Audit
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Clone returns a copy of the job safe to hand to readers
func (j *Job) Clone() *Job {
	c := *j
	if j.Partitions != nil {
		c.Partitions = append([]int32(nil), j.Partitions...)
	}
	return &c
}

// Request is a submission request for a new replay job
type Request struct {
	Cluster        string       `json:"cluster"`
	SourceTopic    string       `json:"source_topic"`
	Partitions     []int32      `json:"partitions,omitempty"`
	StartOffset    *int64       `json:"start_offset,omitempty"`
	StartTimestamp *time.Time   `json:"start_timestamp,omitempty"`
	EndOffset      *int64       `json:"end_offset,omitempty"`
	EndTimestamp   *time.Time   `json:"end_timestamp,omitempty"`
	TargetTopic    string       `json:"target_topic,omitempty"`
	ConsumerGroup  string       `json:"consumer_group,omitempty"`
	Filter         *filter.Spec `json:"filter,omitempty"`

	// Transform is kept raw so the rule list passes through its JSON Schema
	// before it is decoded; see parseTransform.
	Transform json.RawMessage `json:"transform,omitempty"`

	Schedule   schedule.Schedule `json:"schedule"`
	MaxRetries int               `json:"max_retries"`
	RetryDelay int               `json:"retry_delay_seconds"`
	CreatedBy  string            `json:"created_by"`
}

// NewJob validates a request and builds a PENDING job from it
func NewJob(req Request, now time.Time) (*Job, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Already validated by ValidateRequest
	tspec, err := parseTransform(req.Transform)
	if err != nil {
		return nil, ValidationError{Field: "transform", Reason: err.Error()}
	}

	return &Job{
		ID:                uuid.NewString(),
		Cluster:           req.Cluster,
		SourceTopic:       req.SourceTopic,
		Partitions:        append([]int32(nil), req.Partitions...),
		StartOffset:       req.StartOffset,
		StartTimestamp:    req.StartTimestamp,
		EndOffset:         req.EndOffset,
		EndTimestamp:      req.EndTimestamp,
		TargetTopic:       req.TargetTopic,
		ConsumerGroup:     req.ConsumerGroup,
		Filter:            req.Filter,
		Transform:         tspec,
		Status:            StatusPending,
		Schedule:          req.Schedule,
		MaxRetries:        req.MaxRetries,
		RetryDelaySeconds: req.RetryDelay,
		CreatedBy:         req.CreatedBy,
		CreatedAt:         now,
	}, nil
}
