package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description Weekly timetable generation for the sections of a semester
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	readiness := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return database.Ready(ctx, db) },
	}
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		readiness["redis"] = func(ctx context.Context) error { return cache.Ready(ctx, redisClient) }
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr, cacheRepo != nil)

	validate := validator.New()
	jobStore := service.NewGenerationJobStore(cacheSvc, cfg.Scheduler.JobTTL, logr)
	timetableSvc := service.NewTimetableService(
		repository.NewSectionSubjectRepository(db),
		repository.NewLockedSlotRepository(db),
		repository.NewTimeSlotRepository(db),
		repository.NewTimetableRepository(db),
		repository.NewTimetableSlotRepository(db),
		db,
		cacheSvc,
		metrics,
		jobStore,
		validate,
		logr,
		service.TimetableServiceConfig{
			Options:  schedulerOptions(cfg.Scheduler),
			CacheTTL: cfg.Scheduler.CacheTTL,
		},
	)

	worker := service.NewGenerationWorker(jobStore, timetableSvc, cfg.Scheduler.MaxRetries, logr)
	queue := jobs.NewQueue("timetable-generation", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	if cfg.Scheduler.Enabled {
		queue.Start(ctx)
		defer queue.Stop()
	}
	jobSvc := service.NewGenerationJobService(jobStore, queue, timetableSvc, logr)

	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, jobSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))
	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)

	timetables := api.Group("/timetables")
	timetables.POST("/generate", admin, timetableHandler.Generate)
	timetables.POST("/jobs", admin, timetableHandler.EnqueueJob)
	timetables.GET("/jobs/:id", admin, timetableHandler.JobStatus)
	timetables.DELETE("/jobs/:id", admin, timetableHandler.CancelJob)
	timetables.POST("/:id/publish", admin, timetableHandler.Publish)
	timetables.GET("/semesters", staff, timetableHandler.Semesters)
	timetables.GET("/semesters/:semester", staff, timetableHandler.Semester)
	timetables.GET("/semesters/:semester/sections/:section/export", staff, timetableHandler.Export)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func schedulerOptions(cfg config.SchedulerConfig) timetable.Options {
	return timetable.Options{
		TeachingSlots:  cfg.DefaultTeachingSlots,
		LunchSlot:      cfg.LunchSlot,
		MaxAttempts:    cfg.MaxAttempts,
		RelaxAfter:     cfg.RelaxAfter,
		BlockBudget:    cfg.BlockBudget,
		TheoryRounds:   cfg.TheoryRounds,
		Seed:           cfg.Seed,
		BlockDurations: cfg.BlockDurations,
	}
}
