package services

import (
	"time"

	"github.com/cppla/jobpoints/models"
)

// Eligibility is the derived completion state of one task for one user.
type Eligibility struct {
	IsCompleted bool
	CanComplete bool
}

// Evaluate applies the per-type rule to the latest completion (nil when none).
// Listing and self-service completion both go through here.
func Evaluate(taskType models.TaskType, latest *models.CompletionRecord, dayStart time.Time) Eligibility {
	switch taskType {
	case models.TaskDailySignIn:
		done := latest != nil && !latest.CompletedAt.Before(dayStart)
		return Eligibility{IsCompleted: done, CanComplete: !done}
	case models.TaskCompleteProfile:
		done := latest != nil
		return Eligibility{IsCompleted: done, CanComplete: !done}
	case models.TaskUploadResume:
		return Eligibility{IsCompleted: latest != nil, CanComplete: true}
	default:
		// event-driven and unknown types are never self-service
		return Eligibility{}
	}
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func selfService(taskType models.TaskType) bool {
	switch taskType {
	case models.TaskDailySignIn, models.TaskCompleteProfile, models.TaskUploadResume:
		return true
	}
	return false
}
