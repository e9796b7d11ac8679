package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/jobpoints/models"
)

// TaskStatus is an active task with the caller's derived completion state.
type TaskStatus struct {
	models.Task
	IsCompleted bool `json:"is_completed"`
	CanComplete bool `json:"can_complete"`
}

// CompletionResult is returned by a successful self-service completion.
type CompletionResult struct {
	Success       bool `json:"success"`
	PointsAwarded int  `json:"points_awarded"`
}

// AwardResult reports the outcome of an event-driven award. Configuration
// problems are reported here with Success=false instead of as errors.
type AwardResult struct {
	Success       bool   `json:"success"`
	PointsAwarded int    `json:"points_awarded,omitempty"`
	TaskName      string `json:"task_name,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Engine validates eligibility and applies completions: ledger append and
// point credit happen in one transaction holding the profile row lock.
type Engine struct {
	db      *gorm.DB
	catalog *Catalog
	ledger  Ledger
	guard   AwardGuard
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the timezone whose midnight starts a new day.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithAwardGuard installs de-duplication for event-driven awards.
func WithAwardGuard(g AwardGuard) EngineOption {
	return func(e *Engine) { e.guard = g }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine over db using catalog for task listings.
func NewEngine(db *gorm.DB, catalog *Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		db:      db,
		catalog: catalog,
		loc:     time.Local,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListTasksForUser returns every active task with the caller's status.
// Anonymous callers (userID 0) get an empty list.
func (e *Engine) ListTasksForUser(ctx context.Context, userID uint) ([]TaskStatus, error) {
	if userID == 0 {
		return []TaskStatus{}, nil
	}
	tasks, err := e.catalog.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	dayStart := StartOfDay(e.now(), e.loc)
	out := make([]TaskStatus, 0, len(tasks))
	for _, task := range tasks {
		latest, err := e.ledger.Latest(db, userID, task.ID)
		if err != nil {
			return nil, err
		}
		el := Evaluate(task.TaskType, latest, dayStart)
		out = append(out, TaskStatus{Task: task, IsCompleted: el.IsCompleted, CanComplete: el.CanComplete})
	}
	return out, nil
}

// CompleteTask records a self-service completion and credits the task's points.
func (e *Engine) CompleteTask(ctx context.Context, userID, taskID uint) (*CompletionResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var awarded int
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := getTask(tx, taskID)
		if err != nil {
			return err
		}
		if !task.IsActive {
			return ErrInactiveTask
		}
		if !selfService(task.TaskType) {
			return ErrUnsupportedPath
		}

		profile, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}

		now := e.now().In(e.loc)
		latest, err := e.ledger.Latest(tx, userID, task.ID)
		if err != nil {
			return err
		}
		if !Evaluate(task.TaskType, latest, StartOfDay(now, e.loc)).CanComplete {
			return alreadyCompleted(task.TaskType)
		}

		if err := e.credit(tx, profile, task, now, ""); err != nil {
			if errors.Is(err, ErrAlreadyCompleted) {
				return alreadyCompleted(task.TaskType)
			}
			return err
		}
		awarded = task.Points
		return nil
	})
	if err != nil {
		if CodeOf(err) == CodeInternal {
			e.logger.Error("complete task failed", zap.Uint("user_id", userID), zap.Uint("task_id", taskID), zap.Error(err))
		}
		return nil, err
	}

	e.logger.Info("task completed", zap.Uint("user_id", userID), zap.Uint("task_id", taskID), zap.Int("points", awarded))
	return &CompletionResult{Success: true, PointsAwarded: awarded}, nil
}

// AwardForEvent credits the active task of taskType to userID on behalf of
// another workflow (job application, referral signup). A missing task or
// profile yields Success=false without error. reference optionally names the
// triggering entity and is stored on the ledger record.
func (e *Engine) AwardForEvent(ctx context.Context, userID uint, taskType models.TaskType, reference string) (*AwardResult, error) {
	if !taskType.EventDriven() {
		return nil, invalid("task type %s is not awarded by events", taskType)
	}

	claimed := false
	if e.guard != nil {
		ok, err := e.guard.Allow(ctx, userID, taskType, reference)
		if err != nil {
			e.logger.Warn("award guard unavailable, awarding anyway", zap.Error(err))
		} else if !ok {
			return &AwardResult{Success: false, Message: "award already granted recently"}, nil
		}
		claimed = err == nil
	}

	var result *AwardResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = e.awardTx(tx, userID, taskType, reference)
		return err
	})
	if claimed && (err != nil || !result.Success) {
		if rerr := e.guard.Release(ctx, userID, taskType, reference); rerr != nil {
			e.logger.Warn("award guard release failed", zap.Uint("user_id", userID), zap.Error(rerr))
		}
	}
	if err != nil {
		e.logger.Error("event award failed", zap.Uint("user_id", userID), zap.String("type", string(taskType)), zap.Error(err))
		return nil, err
	}
	if result.Success {
		e.logger.Info("event award granted",
			zap.Uint("user_id", userID),
			zap.String("type", string(taskType)),
			zap.Int("points", result.PointsAwarded),
			zap.String("reference", reference),
		)
	}
	return result, nil
}

// awardTx runs an event award inside the caller's transaction.
func (e *Engine) awardTx(tx *gorm.DB, userID uint, taskType models.TaskType, reference string) (*AwardResult, error) {
	task, err := activeByType(tx, taskType)
	if err != nil {
		return nil, err
	}
	if task == nil {
		e.logger.Warn("no active task for event", zap.String("type", string(taskType)))
		return &AwardResult{Success: false, Message: "task not found or inactive"}, nil
	}

	profile, err := lockProfile(tx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		e.logger.Warn("event award for user without profile", zap.Uint("user_id", userID), zap.String("type", string(taskType)))
		return &AwardResult{Success: false, Message: "user profile not found"}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.credit(tx, profile, task, e.now().In(e.loc), reference); err != nil {
		return nil, err
	}
	return &AwardResult{Success: true, PointsAwarded: task.Points, TaskName: task.Name}, nil
}

// credit appends the completion and adds the task points to the locked profile.
func (e *Engine) credit(tx *gorm.DB, profile *models.Profile, task *models.Task, at time.Time, reference string) error {
	rec := &models.CompletionRecord{
		UserID:      profile.UserID,
		TaskID:      task.ID,
		CompletedAt: at,
		PeriodKey:   periodKey(task.TaskType, at),
		Reference:   reference,
	}
	if err := e.ledger.Append(tx, rec); err != nil {
		return err
	}
	profile.Points += task.Points
	if err := tx.Model(profile).Update("points", profile.Points).Error; err != nil {
		return fmt.Errorf("credit points: %w", err)
	}
	return nil
}

func lockProfile(tx *gorm.DB, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}
	return &profile, nil
}

func alreadyCompleted(taskType models.TaskType) error {
	switch taskType {
	case models.TaskDailySignIn:
		return NewError(CodeAlreadyCompleted, "daily sign-in already completed today")
	case models.TaskCompleteProfile:
		return NewError(CodeAlreadyCompleted, "profile completion task already recorded")
	}
	return ErrAlreadyCompleted
}
