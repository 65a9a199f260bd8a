package model

import "time"

// JobStatus is the lifecycle state of an asynchronous comparables job.
type JobStatus string

// Job statuses.
const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job asks for comparables of a stored target to be computed off the
// request path.
type Job struct {
	JobID         string    `json:"job_id"`                   // unique id for idempotency
	TargetID      string    `json:"target_id"`                // record id of the target parcel
	TopK          int       `json:"top_k,omitempty"`          // zero means the configured default
	MinSimilarity *float64  `json:"min_similarity,omitempty"` // nil means the configured default
	SubmittedAt   time.Time `json:"submitted_at"`
}
