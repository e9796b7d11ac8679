package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobpoints/models"
	"github.com/cppla/jobpoints/services"
	"github.com/cppla/jobpoints/utils"
)

// AwardController lets other workflows trigger event-driven awards.
type AwardController struct {
	engine *services.Engine
}

// NewAwardController creates a new controller instance.
func NewAwardController(engine *services.Engine) *AwardController {
	return &AwardController{engine: engine}
}

// AwardForEvent credits an event-driven task. Unconfigured tasks and unknown
// profiles come back as success=false with HTTP 200.
func (a *AwardController) AwardForEvent(ctx *gin.Context) {
	type request struct {
		UserID    uint            `json:"user_id" binding:"required"`
		TaskType  models.TaskType `json:"task_type" binding:"required"`
		Reference string          `json:"reference"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	res, err := a.engine.AwardForEvent(ctx.Request.Context(), req.UserID, req.TaskType, req.Reference)
	if err != nil {
		respondServiceError(ctx, err, 50030)
		return
	}
	utils.Success(ctx, res)
}
