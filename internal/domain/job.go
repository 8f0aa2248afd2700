package domain

import "time"

// JobStatus represents the status of a gallery rebuild job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// RebuildJob records one gallery rebuild and its outcome.
type RebuildJob struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Trigger     string     `gorm:"type:text;not null" json:"trigger"`
	Status      JobStatus  `gorm:"type:text;not null;index" json:"status"`
	Total       int64      `gorm:"default:0" json:"total"`
	Encoded     int64      `gorm:"default:0" json:"encoded"`
	Skipped     int64      `gorm:"default:0" json:"skipped"`
	Failed      int64      `gorm:"default:0" json:"failed"`
	Faces       int64      `gorm:"default:0" json:"faces"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorLog    string     `json:"error_log,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for RebuildJob.
func (RebuildJob) TableName() string {
	return "rebuild_jobs"
}
