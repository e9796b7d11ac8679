package main

import (
	"context"
	"time"

	"github.com/cppla/jobpoints/config"
	"github.com/cppla/jobpoints/models"
	"github.com/cppla/jobpoints/routes"
	"github.com/cppla/jobpoints/services"
	"github.com/cppla/jobpoints/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	logger := utils.Logger

	db := config.InitDatabase(&models.User{}, &models.Profile{}, &models.Task{}, &models.CompletionRecord{}, &models.Referral{})
	rc := utils.GetRedis()

	gate := services.NewRoleGate(db)
	catalog := services.NewCatalog(db, rc, time.Duration(cfg.TaskCacheTTLSec)*time.Second, gate, logger)
	profiles := services.NewProfileStore(db, gate, logger)

	opts := []services.EngineOption{services.WithLocation(cfg.Location()), services.WithLogger(logger)}
	if guard := services.NewCooldownGuard(rc, time.Duration(cfg.EventAwardCooldownSec)*time.Second); guard != nil {
		opts = append(opts, services.WithAwardGuard(guard))
	}
	engine := services.NewEngine(db, catalog, opts...)
	referrals := services.NewReferrals(db, profiles, engine, logger)

	ctx := context.Background()
	if cfg.SeedTasksOnBoot {
		if _, err := catalog.SeedInitialTasks(ctx); err != nil {
			utils.Sugar.Fatalf("seed tasks: %v", err)
		}
	}
	if err := profiles.BootstrapAdmins(ctx, cfg.AdminUsernames); err != nil {
		utils.Sugar.Fatalf("bootstrap admins: %v", err)
	}

	r := routes.SetupRouter(db, routes.Services{
		Engine:    engine,
		Catalog:   catalog,
		Profiles:  profiles,
		Referrals: referrals,
	})

	srv := utils.NewServer(":"+cfg.AppPort, r)
	srv.OnShutdown(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if rc != nil {
			_ = rc.Close()
		}
		_ = logger.Sync()
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
