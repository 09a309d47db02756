package metrics

// Metric name constants following Prometheus naming conventions
// Format: replayd_{component}_{metric}_{unit}

// Job metrics
const (
	MetricJobsByStatus       = "replayd_jobs_by_status"
	MetricJobAttemptsTotal   = "replayd_job_attempts_total"
	MetricJobRetriesTotal    = "replayd_job_retries_total"
	MetricJobAttemptDuration = "replayd_job_attempt_duration_seconds"
)

// Record metrics
const (
	MetricRecordsProcessedTotal = "replayd_records_processed_total"
	MetricRecordsMatchedTotal   = "replayd_records_matched_total"
	MetricRecordsProducedTotal  = "replayd_records_produced_total"
	MetricRecordsFailedTotal    = "replayd_records_failed_total"
	MetricReplayThroughput      = "replayd_replay_throughput"
)

// API metrics
const (
	MetricAPIRequestsTotal   = "replayd_api_requests_total"
	MetricAPIRequestDuration = "replayd_api_request_duration_seconds"
)

// Label name constants
const (
	LabelStatus   = "status"
	LabelResult   = "result"
	LabelTopic    = "topic"
	LabelMethod   = "method"
	LabelEndpoint = "endpoint"
)
