package models

import "time"

// CompletionRecord is the immutable fact that a user completed a task.
//
// PeriodKey scopes the unique (user, task, period) constraint: a day stamp for
// daily tasks, "once" for lifetime tasks and a random key for repeatable ones.
type CompletionRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_completion_user_task,priority:1;uniqueIndex:uniq_completion_period,priority:1" json:"user_id"`
	TaskID      uint      `gorm:"not null;index:idx_completion_user_task,priority:2;uniqueIndex:uniq_completion_period,priority:2" json:"task_id"`
	CompletedAt time.Time `gorm:"not null;index:idx_completion_user_task,priority:3" json:"completed_at"`
	PeriodKey   string    `gorm:"size:64;not null;uniqueIndex:uniq_completion_period,priority:3" json:"-"`
	Reference   string    `gorm:"size:128" json:"reference,omitempty"`
}

// TableName keeps the ledger table name stable.
func (CompletionRecord) TableName() string {
	return "user_completed_tasks"
}
