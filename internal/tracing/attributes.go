package tracing

// Span attribute keys following OpenTelemetry semantic conventions
const (
	// Job attributes
	AttrJobID      = "replayd.job.id"
	AttrJobAttempt = "replayd.job.attempt"
	AttrJobStatus  = "replayd.job.status"

	// Replay attributes
	AttrTopic       = "replayd.topic"
	AttrDestination = "replayd.destination"
	AttrPartition   = "replayd.partition"
	AttrOffset      = "replayd.offset"

	// Record counters
	AttrRecordsProcessed = "replayd.records.processed"
	AttrRecordsMatched   = "replayd.records.matched"
	AttrRecordsProduced  = "replayd.records.produced"
	AttrRecordsFailed    = "replayd.records.failed"

	// HTTP attributes (OpenTelemetry semantic conventions)
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
)
