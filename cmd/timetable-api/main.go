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
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable generation, validation and version history for schools.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	readiness := map[string]handler.Pinger{"postgres": db}

	locker := service.NewSchoolLocker(nil)
	if cfg.Scheduler.DistributedLock {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		readiness["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		locker = service.NewSchoolLocker(repository.NewScheduleLockRepository(redisClient, cfg.Scheduler.LockTTL, logr))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	timetableRepo := repository.NewTimetableRepository(db)
	assignmentRepo := repository.NewTeachingAssignmentRepository(db)

	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	timetableSvc := service.NewTimetableService(assignmentRepo, timetableRepo, db, locker, metricsSvc, validate, logr, service.TimetableConfig{
		Seed:              cfg.Scheduler.Seed,
		MaxDailyRepeats:   cfg.Scheduler.MaxDailyRepeats,
		GenerationTimeout: cfg.Scheduler.GenerationTimeout,
	})
	slotSvc := service.NewScheduleSlotService(timetableRepo, assignmentRepo, db, validate, logr)
	exportSvc := service.NewExportService(timetableRepo, validate, logr, export.NewCSVExporter(), export.NewPDFExporter())

	timetableHandler := handler.NewTimetableHandler(timetableSvc, slotSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokenSvc))
	api.GET("/metrics/summary", metricsHandler.Snapshot)

	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	schedules := api.Group("/schedules")
	{
		schedules.POST("/generate", admin, timetableHandler.Generate)
		schedules.GET("/class/:classId", timetableHandler.ClassSchedule)
		schedules.GET("/class/:classId/day/:day", timetableHandler.ClassScheduleByDay)
		schedules.GET("/class/:classId/teachers", timetableHandler.ClassTeachers)
		schedules.GET("/teacher/:teacherId", timetableHandler.TeacherSchedule)
		schedules.GET("/teacher/:teacherId/day/:day", timetableHandler.TeacherScheduleByDay)
		schedules.GET("/school", timetableHandler.SchoolSchedule)
		schedules.GET("/statistics", timetableHandler.Statistics)
		schedules.GET("/historical", timetableHandler.Historical)
		schedules.GET("/history", timetableHandler.ChangeHistory)
		schedules.GET("/versions", timetableHandler.Versions)
		schedules.POST("/validate", timetableHandler.Validate)
		schedules.GET("/validate", timetableHandler.ValidateCurrent)
		schedules.GET("/export", timetableHandler.Export)
		schedules.POST("/slot", admin, timetableHandler.CreateSlot)
		schedules.DELETE("/slot", admin, timetableHandler.DeleteSlot)
		schedules.DELETE("", admin, timetableHandler.DeleteSchool)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.GenerationTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
