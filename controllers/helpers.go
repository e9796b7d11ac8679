package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobpoints/middleware"
	"github.com/cppla/jobpoints/services"
	"github.com/cppla/jobpoints/utils"
)

// getUserID returns the authenticated caller, 0/false when anonymous.
func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// respondServiceError maps a classified service error onto status and business code.
func respondServiceError(ctx *gin.Context, err error, internalCode int) {
	status, code := http.StatusInternalServerError, internalCode
	switch services.CodeOf(err) {
	case services.CodeUnauthenticated:
		status, code = http.StatusUnauthorized, 40110
	case services.CodeNotAuthorized:
		status, code = http.StatusForbidden, 40310
	case services.CodeNotFound:
		status, code = http.StatusNotFound, 40410
	case services.CodeAlreadyCompleted:
		status, code = http.StatusConflict, 40930
	case services.CodeInactiveTask:
		status, code = http.StatusConflict, 40931
	case services.CodeUnsupportedCompletionPath:
		status, code = http.StatusUnprocessableEntity, 42210
	case services.CodeInvalidArgument:
		status, code = http.StatusBadRequest, 40010
	default:
		utils.Sugar.Errorf("%s %s failed: %v", ctx.Request.Method, ctx.FullPath(), err)
		utils.Error(ctx, status, code, "internal error")
		return
	}
	utils.Error(ctx, status, code, serviceMessage(err))
}

func serviceMessage(err error) string {
	var sErr *services.Error
	if errors.As(err, &sErr) && sErr.Message != "" {
		return sErr.Message
	}
	return err.Error()
}
