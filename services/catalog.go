package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/jobpoints/models"
	"github.com/cppla/jobpoints/utils"
)

const activeTasksCacheKey = "cache:tasks:active"

// DefaultTasks is the catalog inserted by SeedInitialTasks into an empty table.
var DefaultTasks = []models.Task{
	{Name: "Daily Sign-In", Description: "Check in once per day", Points: 10, TaskType: models.TaskDailySignIn, IsActive: true},
	{Name: "Complete Your Profile", Description: "Fill out all profile fields (education, skills)", Points: 50, TaskType: models.TaskCompleteProfile, IsActive: true},
	{Name: "Refer a Peer", Description: "Unique referral link generates points on signup", Points: 200, TaskType: models.TaskReferPeer, IsActive: true},
	{Name: "Apply for a Job", Description: "Click Apply on a job listing via the portal", Points: 5, TaskType: models.TaskApplyJob, IsActive: true},
	{Name: "Upload Resume", Description: "Add or update resume PDF/profile document", Points: 20, TaskType: models.TaskUploadResume, IsActive: true},
}

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Points      int             `json:"points" binding:"required"`
	TaskType    models.TaskType `json:"task_type" binding:"required"`
	IsActive    *bool           `json:"is_active"`
}

// TaskPatch carries a partial task update; nil fields are left untouched.
type TaskPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Points      *int             `json:"points"`
	TaskType    *models.TaskType `json:"task_type"`
	IsActive    *bool            `json:"is_active"`
}

// Catalog stores task definitions. The active list is cached in Redis when available.
type Catalog struct {
	db       *gorm.DB
	cache    *redis.Client
	cacheTTL time.Duration
	gate     *RoleGate
	logger   *zap.Logger
}

// NewCatalog creates a Catalog. cache may be nil.
func NewCatalog(db *gorm.DB, cache *redis.Client, cacheTTL time.Duration, gate *RoleGate, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{db: db, cache: cache, cacheTTL: cacheTTL, gate: gate, logger: logger}
}

// ListActive returns every active task ordered by id.
func (c *Catalog) ListActive(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if utils.CacheGetJSON(c.cache, activeTasksCacheKey, &tasks) {
		return tasks, nil
	}
	if err := c.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	utils.CacheSetJSON(c.cache, activeTasksCacheKey, tasks, c.cacheTTL)
	return tasks, nil
}

// Get loads a task by id regardless of its active flag.
func (c *Catalog) Get(ctx context.Context, id uint) (*models.Task, error) {
	return getTask(c.db.WithContext(ctx), id)
}

func getTask(tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	err := tx.First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}
	return &task, nil
}

// ActiveByType returns the active task of taskType with the lowest id, or nil.
func (c *Catalog) ActiveByType(ctx context.Context, taskType models.TaskType) (*models.Task, error) {
	return activeByType(c.db.WithContext(ctx), taskType)
}

// activeByType returns the first active task of taskType, or nil when none is configured.
func activeByType(tx *gorm.DB, taskType models.TaskType) (*models.Task, error) {
	var task models.Task
	err := tx.Where("task_type = ? AND is_active = ?", taskType, true).Order("id ASC").First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active %s task: %w", taskType, err)
	}
	return &task, nil
}

// CreateTask adds a task to the catalog. Admin only.
func (c *Catalog) CreateTask(ctx context.Context, adminID uint, in TaskInput) (*models.Task, error) {
	if _, err := c.gate.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	task := models.Task{
		Name:        utils.PlainText(in.Name),
		Description: utils.Sanitize(in.Description),
		Points:      in.Points,
		TaskType:    in.TaskType,
		IsActive:    true,
	}
	if in.IsActive != nil {
		task.IsActive = *in.IsActive
	}
	if err := validateTask(&task); err != nil {
		return nil, err
	}

	if err := c.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	c.invalidate()
	c.logger.Info("task created", zap.Uint("task_id", task.ID), zap.String("type", string(task.TaskType)), zap.Uint("admin_id", adminID))
	return &task, nil
}

// UpdateTask applies a partial update. Admin only.
func (c *Catalog) UpdateTask(ctx context.Context, adminID, taskID uint, patch TaskPatch) (*models.Task, error) {
	if _, err := c.gate.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var task *models.Task
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getTask(tx, taskID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if patch.Name != nil {
			current.Name = utils.PlainText(*patch.Name)
			updates["name"] = current.Name
		}
		if patch.Description != nil {
			current.Description = utils.Sanitize(*patch.Description)
			updates["description"] = current.Description
		}
		if patch.Points != nil {
			current.Points = *patch.Points
			updates["points"] = current.Points
		}
		if patch.TaskType != nil {
			current.TaskType = *patch.TaskType
			updates["task_type"] = current.TaskType
		}
		if patch.IsActive != nil {
			current.IsActive = *patch.IsActive
			updates["is_active"] = current.IsActive
		}
		if err := validateTask(current); err != nil {
			return err
		}
		task = current
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(current).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	c.invalidate()
	c.logger.Info("task updated", zap.Uint("task_id", taskID), zap.Uint("admin_id", adminID))
	return task, nil
}

// SeedInitialTasks inserts DefaultTasks when the catalog is empty. Reports whether it inserted.
func (c *Catalog) SeedInitialTasks(ctx context.Context) (bool, error) {
	seeded := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Task{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		tasks := make([]models.Task, len(DefaultTasks))
		copy(tasks, DefaultTasks)
		if err := tx.Create(&tasks).Error; err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed tasks: %w", err)
	}
	if seeded {
		c.invalidate()
		c.logger.Info("initial tasks seeded", zap.Int("count", len(DefaultTasks)))
	} else {
		c.logger.Debug("tasks already seeded")
	}
	return seeded, nil
}

// SeedInitialTasksAs runs SeedInitialTasks on behalf of an admin.
func (c *Catalog) SeedInitialTasksAs(ctx context.Context, adminID uint) (bool, error) {
	if _, err := c.gate.RequireAdmin(ctx, adminID); err != nil {
		return false, err
	}
	return c.SeedInitialTasks(ctx)
}

func (c *Catalog) invalidate() {
	utils.CacheDelete(c.cache, activeTasksCacheKey)
}

func validateTask(t *models.Task) error {
	if t.Name == "" {
		return invalid("task name is required")
	}
	if t.Points <= 0 {
		return invalid("task points must be positive, got %d", t.Points)
	}
	if !t.TaskType.Valid() {
		return invalid("unknown task type %q", t.TaskType)
	}
	return nil
}
