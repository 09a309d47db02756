package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks replay job and record metrics. All methods are safe on
// a nil receiver so callers can run with metrics disabled.
type JobMetrics struct {
	jobsByStatus       *prometheus.GaugeVec
	jobAttemptsTotal   *prometheus.CounterVec
	jobRetriesTotal    *prometheus.CounterVec
	jobAttemptDuration *prometheus.HistogramVec

	recordsProcessed *prometheus.CounterVec
	recordsMatched   *prometheus.CounterVec
	recordsProduced  *prometheus.CounterVec
	recordsFailed    *prometheus.CounterVec
	replayThroughput *prometheus.GaugeVec
}

// NewJobMetrics initializes job metrics with the collector
func NewJobMetrics(collector *Collector) *JobMetrics {
	return &JobMetrics{
		jobsByStatus: collector.RegisterGauge(
			MetricJobsByStatus,
			"Number of replay jobs per lifecycle status",
			[]string{LabelStatus},
		),
		jobAttemptsTotal: collector.RegisterCounter(
			MetricJobAttemptsTotal,
			"Total execution attempts by result",
			[]string{LabelResult},
		),
		jobRetriesTotal: collector.RegisterCounter(
			MetricJobRetriesTotal,
			"Total automatic retries queued after failed attempts",
			nil,
		),
		jobAttemptDuration: collector.RegisterHistogram(
			MetricJobAttemptDuration,
			"Duration of execution attempts in seconds",
			[]string{LabelResult},
			[]float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		),
		recordsProcessed: collector.RegisterCounter(
			MetricRecordsProcessedTotal,
			"Total candidate records examined",
			[]string{LabelTopic},
		),
		recordsMatched: collector.RegisterCounter(
			MetricRecordsMatchedTotal,
			"Total records that passed the filter",
			[]string{LabelTopic},
		),
		recordsProduced: collector.RegisterCounter(
			MetricRecordsProducedTotal,
			"Total records delivered to a target topic",
			[]string{LabelTopic},
		),
		recordsFailed: collector.RegisterCounter(
			MetricRecordsFailedTotal,
			"Total per-record failures (skipped, not fatal)",
			[]string{LabelTopic},
		),
		replayThroughput: collector.RegisterGauge(
			MetricReplayThroughput,
			"Records per second over the trailing window, per source topic",
			[]string{LabelTopic},
		),
	}
}

// SetJobsByStatus updates the status gauge from a status count snapshot
func (m *JobMetrics) SetJobsByStatus(counts map[string]int) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.jobsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// RecordAttempt records the outcome and duration of one execution attempt
func (m *JobMetrics) RecordAttempt(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobAttemptsTotal.WithLabelValues(result).Inc()
	m.jobAttemptDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordRetry records an automatic retry being queued
func (m *JobMetrics) RecordRetry() {
	if m == nil {
		return
	}
	m.jobRetriesTotal.WithLabelValues().Inc()
}

// RecordProgress records record-level deltas and the current throughput
// sample for a source topic
func (m *JobMetrics) RecordProgress(topic string, processed, matched, produced, failed int64, throughput float64) {
	if m == nil {
		return
	}
	m.recordsProcessed.WithLabelValues(topic).Add(float64(processed))
	m.recordsMatched.WithLabelValues(topic).Add(float64(matched))
	m.recordsProduced.WithLabelValues(topic).Add(float64(produced))
	m.recordsFailed.WithLabelValues(topic).Add(float64(failed))
	m.replayThroughput.WithLabelValues(topic).Set(throughput)
}
