package replay

import (
	"encoding/json"

	"github.com/flowmesh/replayd/internal/filter"
	"github.com/flowmesh/replayd/internal/schedule"
	"github.com/flowmesh/replayd/internal/transform"
)

// ValidateRequest enforces the job spec invariants at submission time.
// A request that fails here never enters PENDING.
func ValidateRequest(req Request) error {
	if req.SourceTopic == "" {
		return ValidationError{Field: "source_topic", Reason: "is required"}
	}

	// Destination: exactly one of target topic / consumer group
	if req.TargetTopic == "" && req.ConsumerGroup == "" {
		return ValidationError{Field: "destination", Reason: "either target_topic or consumer_group is required"}
	}
	if req.TargetTopic != "" && req.ConsumerGroup != "" {
		return ValidationError{Field: "destination", Reason: "target_topic and consumer_group are mutually exclusive"}
	}

	// Range bounds: offset XOR timestamp per end
	if req.StartOffset != nil && req.StartTimestamp != nil {
		return ValidationError{Field: "start", Reason: "start_offset and start_timestamp are mutually exclusive"}
	}
	if req.EndOffset != nil && req.EndTimestamp != nil {
		return ValidationError{Field: "end", Reason: "end_offset and end_timestamp are mutually exclusive"}
	}
	if req.StartOffset != nil && *req.StartOffset < 0 {
		return ValidationError{Field: "start_offset", Reason: "cannot be negative"}
	}
	if req.EndOffset != nil && *req.EndOffset < 0 {
		return ValidationError{Field: "end_offset", Reason: "cannot be negative"}
	}
	if req.StartOffset != nil && req.EndOffset != nil && *req.EndOffset < *req.StartOffset {
		return ValidationError{Field: "end_offset", Reason: "must be >= start_offset"}
	}
	if req.StartTimestamp != nil && req.EndTimestamp != nil && req.EndTimestamp.Before(*req.StartTimestamp) {
		return ValidationError{Field: "end_timestamp", Reason: "must be >= start_timestamp"}
	}

	for _, p := range req.Partitions {
		if p < 0 {
			return ValidationError{Field: "partitions", Reason: "partition numbers cannot be negative"}
		}
	}

	if req.MaxRetries < 0 {
		return ValidationError{Field: "max_retries", Reason: "cannot be negative"}
	}
	if req.RetryDelay < 0 {
		return ValidationError{Field: "retry_delay_seconds", Reason: "cannot be negative"}
	}

	if err := schedule.Validate(req.Schedule); err != nil {
		return ValidationError{Field: "schedule", Reason: err.Error()}
	}
	if err := filter.Validate(req.Filter); err != nil {
		return ValidationError{Field: "filter", Reason: err.Error()}
	}
	if _, err := parseTransform(req.Transform); err != nil {
		return ValidationError{Field: "transform", Reason: err.Error()}
	}

	return nil
}

// parseTransform runs a raw transform spec through its JSON Schema and
// decodes it. An absent or null spec is the identity transformation.
func parseTransform(raw json.RawMessage) (*transform.Spec, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return transform.ParseSpec(raw)
}
