package models

import "time"

type ExportJob struct {
	ID           string     `json:"job_id"`
	UserID       int64      `json:"user_id"`
	Status       string     `json:"status"` // pending, processing, completed, failed, cancelled
	Format       string     `json:"format"` // csv, xlsx
	ArtifactPath string     `json:"-"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// IsTerminal reports whether the job can never change status again.
func (j *ExportJob) IsTerminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// IsExpiredAt reports whether the artifact is past its retention window.
func (j *ExportJob) IsExpiredAt(now time.Time) bool {
	return j.ExpiresAt != nil && now.After(*j.ExpiresAt)
}

// JobView is the client-visible projection of an export job.
type JobView struct {
	JobID        string     `json:"job_id"`
	Status       string     `json:"status"`
	Format       string     `json:"format"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsExpired    bool       `json:"is_expired"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// View projects the job for status responses, deriving is_expired.
func (j *ExportJob) View(now time.Time) JobView {
	return JobView{
		JobID:        j.ID,
		Status:       j.Status,
		Format:       j.Format,
		CreatedAt:    j.CreatedAt,
		CompletedAt:  j.CompletedAt,
		ExpiresAt:    j.ExpiresAt,
		IsExpired:    j.IsExpiredAt(now),
		ErrorMessage: j.ErrorMessage,
	}
}
