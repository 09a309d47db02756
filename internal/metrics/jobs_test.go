package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	require.NotNil(t, collector)
	assert.NotNil(t, collector.GetRegistry())
}

func TestJobMetricsRecordProgress(t *testing.T) {
	collector := NewCollector()
	m := NewJobMetrics(collector)

	m.RecordProgress("orders", 100, 20, 18, 2, 42.5)
	m.RecordProgress("orders", 50, 5, 5, 0, 30.0)

	assert.Equal(t, 150.0, testutil.ToFloat64(m.recordsProcessed.WithLabelValues("orders")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.recordsMatched.WithLabelValues("orders")))
	assert.Equal(t, 23.0, testutil.ToFloat64(m.recordsProduced.WithLabelValues("orders")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.recordsFailed.WithLabelValues("orders")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.replayThroughput.WithLabelValues("orders")))
}

func TestJobMetricsStatusGauge(t *testing.T) {
	collector := NewCollector()
	m := NewJobMetrics(collector)

	m.SetJobsByStatus(map[string]int{"PENDING": 3, "RUNNING": 1})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.jobsByStatus.WithLabelValues("PENDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsByStatus.WithLabelValues("RUNNING")))

	m.SetJobsByStatus(map[string]int{"PENDING": 0, "RUNNING": 0})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.jobsByStatus.WithLabelValues("PENDING")))
}

func TestJobMetricsAttempts(t *testing.T) {
	collector := NewCollector()
	m := NewJobMetrics(collector)

	m.RecordAttempt("completed", 2*time.Second)
	m.RecordAttempt("failed", time.Second)
	m.RecordRetry()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobAttemptsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobAttemptsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRetriesTotal.WithLabelValues()))
}

func TestJobMetricsNilReceiver(t *testing.T) {
	var m *JobMetrics

	// Metrics-disabled mode; all methods must be safe no-ops
	m.SetJobsByStatus(map[string]int{"PENDING": 1})
	m.RecordAttempt("completed", time.Second)
	m.RecordRetry()
	m.RecordProgress("orders", 1, 1, 1, 0, 1)
}
