package domain

import "time"

// JobMode enumerates supported generation job categories.
type JobMode string

const (
	JobModeImage JobMode = "image"
	JobModeVideo JobMode = "video"
	JobModeChat  JobMode = "chat"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the backend record of one unit of generation work. The client side
// of the product only ever observes it; the service owns its transitions.
type Job struct {
	ID           string
	OwnerID      string
	Mode         JobMode
	Status       JobStatus
	ModelID      string
	Provider     Provider
	PayloadJSON  []byte
	ResultJSON   []byte
	Quantity     int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
