package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-venue-api/api/swagger"
	"github.com/noah-isme/exam-venue-api/internal/handler"
	internalmiddleware "github.com/noah-isme/exam-venue-api/internal/middleware"
	"github.com/noah-isme/exam-venue-api/internal/models"
	"github.com/noah-isme/exam-venue-api/internal/repository"
	"github.com/noah-isme/exam-venue-api/internal/service"
	"github.com/noah-isme/exam-venue-api/pkg/cache"
	"github.com/noah-isme/exam-venue-api/pkg/config"
	"github.com/noah-isme/exam-venue-api/pkg/database"
	"github.com/noah-isme/exam-venue-api/pkg/export"
	"github.com/noah-isme/exam-venue-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-venue-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-venue-api/pkg/middleware/requestid"
)

// @title Exam Venue API
// @version 0.1.0
// @description Exam venue allocation, booking and seat assignment
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	bookingRepo := repository.NewBookingRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	periodRepo := repository.NewExamPeriodRepository(db)
	examRepo := repository.NewExaminationRepository(db)
	seatRepo := repository.NewSeatRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cache.NewKeyspace(cfg.Cache.KeyPrefix), cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	periods := service.NewPeriodValidator(periodRepo, logr)
	detector := service.NewConflictDetector(bookingRepo, logr)
	allocator := service.NewVenueAllocator(venueRepo, detector, logr, cfg.Scheduling.MaxCandidates)
	store := service.NewScheduleStore(bookingRepo, seatRepo, periods, venueRepo, logr)
	seats := service.NewSeatAssigner(examRepo, enrollmentRepo, bookingRepo, seatRepo, logr)
	exporter := service.NewExportService(examRepo, seatRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	scheduling := service.NewExamSchedulingService(
		examRepo,
		enrollmentRepo,
		periods,
		detector,
		allocator,
		store,
		seats,
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.SchedulingConfig{
			TxTimeout:           cfg.Scheduling.TxTimeout,
			DefaultCapacityMode: models.CapacityMode(cfg.Scheduling.DefaultCapacityMode),
		},
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metricsSvc != nil {
		r.Use(internalmiddleware.Metrics(metricsSvc))
	}

	ops := handler.NewMetricsHandler(metricsSvc, db, logr)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", ops.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	examHandler := handler.NewExamScheduleHandler(scheduling)
	bookingHandler := handler.NewBookingHandler(scheduling)
	venueHandler := handler.NewVenueHandler(scheduling)
	seatHandler := handler.NewSeatHandler(scheduling, exporter)

	readers := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleExamOfficer, models.RoleStaff)
	writers := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleExamOfficer)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc))

	exams := api.Group("/examinations/:id")
	exams.POST("/date-check", readers, examHandler.DateCheck)
	exams.POST("/allocation-preview", readers, examHandler.Preview)
	exams.GET("/bookings", readers, examHandler.List)
	exams.POST("/bookings", writers, examHandler.Book)
	exams.PUT("/bookings", writers, examHandler.Replace)
	exams.DELETE("/bookings", writers, examHandler.Cancel)
	exams.GET("/seats", readers, seatHandler.Get)
	exams.GET("/seats/export", readers, seatHandler.Export)
	exams.POST("/seats", writers, seatHandler.Assign)

	api.PUT("/bookings/:id", writers, bookingHandler.Update)
	api.DELETE("/bookings/:id", writers, bookingHandler.Delete)
	api.GET("/venues/:id/conflicts", readers, venueHandler.Conflicts)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
