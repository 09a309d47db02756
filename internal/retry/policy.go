package retry

import (
	"time"

	"github.com/flowmesh/replayd/internal/replay"
)

// ShouldRetry reports whether a job is eligible for an automatic retry.
// Only FAILED jobs with remaining budget qualify; cancelled jobs never do.
func ShouldRetry(job *replay.Job) bool {
	if job.Status != replay.StatusFailed {
		return false
	}
	return job.RetryCount < job.MaxRetries
}

// Delay returns the minimum wait before the supervisor re-queues a failed
// job as PENDING.
func Delay(job *replay.Job) time.Duration {
	return time.Duration(job.RetryDelaySeconds) * time.Second
}
