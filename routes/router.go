package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/jobpoints/config"
	"github.com/cppla/jobpoints/controllers"
	"github.com/cppla/jobpoints/middleware"
	"github.com/cppla/jobpoints/services"
	"github.com/cppla/jobpoints/utils"
)

// Services bundles the domain services the HTTP layer calls into.
type Services struct {
	Engine    *services.Engine
	Catalog   *services.Catalog
	Profiles  *services.ProfileStore
	Referrals *services.Referrals
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, svc Services) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// access and panic logs go to their own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, true))
	} else {
		utils.Sugar.Warnf("gin logger unavailable, using default recovery: %v", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.InternalTokenHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	taskController := controllers.NewTaskController(svc.Engine, svc.Catalog)
	profileController := controllers.NewProfileController(svc.Profiles, svc.Referrals)
	awardController := controllers.NewAwardController(svc.Engine)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)

	// anonymous callers are allowed and see empty/null results
	optional := api.Group("")
	optional.Use(middleware.OptionalAuth(), middleware.RateLimitMiddleware())
	optional.GET("/tasks", taskController.ListActiveTasks)
	optional.GET("/profile/me", profileController.GetMyProfile)
	optional.GET("/profile/referral-code", profileController.GetMyReferralCode)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/tasks/:id/complete", taskController.CompleteTask)
	protected.POST("/profile", profileController.EnsureProfile)

	// the admin role itself is checked inside each operation
	admin := protected.Group("/admin")
	admin.POST("/tasks", taskController.CreateTask)
	admin.PATCH("/tasks/:id", taskController.UpdateTask)
	admin.POST("/tasks/seed", taskController.SeedTasks)
	admin.PUT("/users/:id/role", profileController.AdminUpdateUserRole)

	internal := api.Group("/internal")
	internal.Use(middleware.InternalOnly(cfg.InternalToken))
	internal.POST("/awards", awardController.AwardForEvent)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
