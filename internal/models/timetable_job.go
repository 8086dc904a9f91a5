package models

import "time"

// JobStatus captures background generation lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFinished   JobStatus = "FINISHED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status will not change anymore.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// TimetableJob is the in-memory record of an asynchronous generation.
type TimetableJob struct {
	ID         string
	Status     JobStatus
	Attempts   int
	CreatedBy  string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	ExpiresAt  time.Time
	Error      error
	Result     interface{}
}
