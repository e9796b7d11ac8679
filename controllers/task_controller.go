package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobpoints/services"
	"github.com/cppla/jobpoints/utils"
)

// TaskController serves task listing, completion and catalog administration.
type TaskController struct {
	engine  *services.Engine
	catalog *services.Catalog
}

// NewTaskController creates a new controller instance.
func NewTaskController(engine *services.Engine, catalog *services.Catalog) *TaskController {
	return &TaskController{engine: engine, catalog: catalog}
}

// ListActiveTasks returns active tasks with the caller's completion state.
// Anonymous callers get an empty list.
func (t *TaskController) ListActiveTasks(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	tasks, err := t.engine.ListTasksForUser(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50010)
		return
	}
	utils.Success(ctx, tasks)
}

// CompleteTask records a self-service completion for the caller.
func (t *TaskController) CompleteTask(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	taskID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	res, err := t.engine.CompleteTask(ctx.Request.Context(), userID, taskID)
	if err != nil {
		respondServiceError(ctx, err, 50011)
		return
	}
	utils.Success(ctx, res)
}

// CreateTask adds a task to the catalog.
func (t *TaskController) CreateTask(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	var in services.TaskInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	task, err := t.catalog.CreateTask(ctx.Request.Context(), userID, in)
	if err != nil {
		respondServiceError(ctx, err, 50012)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", task)
}

// UpdateTask applies a partial update to a task.
func (t *TaskController) UpdateTask(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	taskID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var patch services.TaskPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	task, err := t.catalog.UpdateTask(ctx.Request.Context(), userID, taskID, patch)
	if err != nil {
		respondServiceError(ctx, err, 50013)
		return
	}
	utils.Success(ctx, task)
}

// SeedTasks inserts the default catalog when it is empty.
func (t *TaskController) SeedTasks(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	seeded, err := t.catalog.SeedInitialTasksAs(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50014)
		return
	}
	utils.Success(ctx, gin.H{"seeded": seeded})
}
