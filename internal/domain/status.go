package domain

import "encoding/json"

// JobState enumerates the remote job lifecycle states.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// JobStatus is the authoritative status reported by the service for one job.
// Once a terminal status has been observed no further checks are issued for
// that job.
type JobStatus struct {
	State JobState
	// Result carries the generated script payload when State is completed.
	Result json.RawMessage
	// Reason carries the failure description when State is failed.
	Reason string
}

// Terminal reports whether no further status checks are needed.
func (s JobStatus) Terminal() bool {
	return s.State == JobStateCompleted || s.State == JobStateFailed
}

// PendingStatus is the status used for transient conditions (network hiccups,
// unreadable bodies) that the poller absorbs and retries.
func PendingStatus() JobStatus {
	return JobStatus{State: JobStatePending}
}
