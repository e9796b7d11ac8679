package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/jobpoints/models"
)

const oncePeriodKey = "once"

// Ledger is the append-only store of task completions. Methods take the
// transaction handle so reads and appends share the caller's atomic unit.
type Ledger struct{}

// Latest returns the most recent completion of taskID by userID, or nil.
func (Ledger) Latest(tx *gorm.DB, userID, taskID uint) (*models.CompletionRecord, error) {
	var rec models.CompletionRecord
	err := tx.Where("user_id = ? AND task_id = ?", userID, taskID).
		Order("completed_at DESC").Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest completion: %w", err)
	}
	return &rec, nil
}

// Append writes a completion. A clash on (user, task, period) reports ErrAlreadyCompleted.
func (Ledger) Append(tx *gorm.DB, rec *models.CompletionRecord) error {
	if err := tx.Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return WrapError(CodeAlreadyCompleted, "completion already recorded for this period", err)
		}
		return fmt.Errorf("append completion: %w", err)
	}
	return nil
}

// periodKey picks the uniqueness scope of a new completion.
func periodKey(taskType models.TaskType, at time.Time) string {
	switch taskType {
	case models.TaskDailySignIn:
		return "day:" + at.Format("2006-01-02")
	case models.TaskCompleteProfile:
		return oncePeriodKey
	default:
		return uuid.NewString()
	}
}
