package replay

import "fmt"

// JobNotFoundError indicates a replay job was not found
type JobNotFoundError struct {
	JobID string
}

func (e JobNotFoundError) Error() string {
	return fmt.Sprintf("replay job not found: %s", e.JobID)
}

// InvalidStateTransitionError indicates an invalid job status transition
type InvalidStateTransitionError struct {
	JobID     string
	Current   Status
	Requested Status
}

func (e InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: job %s is %s, cannot transition to %s", e.JobID, e.Current, e.Requested)
}

// ValidationError indicates a job spec was rejected at submission
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid job spec: %s", e.Reason)
	}
	return fmt.Sprintf("invalid job spec: %s: %s", e.Field, e.Reason)
}

// JobRunningError indicates an operation that requires a non-running job
type JobRunningError struct {
	JobID string
}

func (e JobRunningError) Error() string {
	return fmt.Sprintf("replay job %s is running", e.JobID)
}
