package entity

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus follows a forward-only state machine:
// queued -> running -> (success | failed). Success and failed are terminal.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// IsTerminal reports whether no further executor writes may occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Job kinds handled by the task executor.
const (
	JobTypeAutoAnnotate = "auto_annotate"
	JobTypeTrainYolo    = "train_yolo"
)

type Job struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	ProjectID uint              `json:"project_id" gorm:"not null;index"`
	JobType   string            `json:"job_type" gorm:"type:varchar(32);not null;index"`
	Status    JobStatus         `json:"status" gorm:"type:varchar(32);not null;default:'queued';index"`
	Progress  float64           `json:"progress" gorm:"default:0"`
	Message   string            `json:"message" gorm:"type:text"`
	Payload   datatypes.JSONMap `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"autoUpdateTime"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// JobProjection is the observable slice of a Job pushed to streaming clients
// and cached in Redis.
type JobProjection struct {
	ID        uint      `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Projection extracts the streamable view of the job.
func (j *Job) Projection() JobProjection {
	return JobProjection{
		ID:        j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Message:   j.Message,
		UpdatedAt: j.UpdatedAt,
	}
}
