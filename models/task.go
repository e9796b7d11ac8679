package models

import "time"

// TaskType selects the eligibility rule applied to a task.
type TaskType string

const (
	TaskDailySignIn     TaskType = "DAILY_SIGN_IN"
	TaskReferPeer       TaskType = "REFER_PEER"
	TaskApplyJob        TaskType = "APPLY_JOB"
	TaskUploadResume    TaskType = "UPLOAD_RESUME"
	TaskCompleteProfile TaskType = "COMPLETE_PROFILE"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskDailySignIn, TaskReferPeer, TaskApplyJob, TaskUploadResume, TaskCompleteProfile:
		return true
	}
	return false
}

// EventDriven reports whether the task type is only awarded by other workflows.
func (t TaskType) EventDriven() bool {
	return t == TaskReferPeer || t == TaskApplyJob
}

// Task defines an earnable action. Tasks are disabled through IsActive, never deleted.
type Task struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Points      int       `gorm:"not null" json:"points"`
	TaskType    TaskType  `gorm:"size:32;not null;index:idx_tasks_type_active" json:"task_type"`
	IsActive    bool      `gorm:"not null;index:idx_tasks_type_active" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
