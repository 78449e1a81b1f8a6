package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/ctp-api/api/swagger"
	"github.com/noah-isme/ctp-api/internal/handler"
	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository"
	"github.com/noah-isme/ctp-api/internal/service"
	"github.com/noah-isme/ctp-api/pkg/cache"
	"github.com/noah-isme/ctp-api/pkg/config"
	"github.com/noah-isme/ctp-api/pkg/database"
	"github.com/noah-isme/ctp-api/pkg/jobs"
	"github.com/noah-isme/ctp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ctp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ctp-api/pkg/middleware/requestid"
	"github.com/noah-isme/ctp-api/pkg/storage"
)

// @title Campus Training & Placement API
// @version 1.0.0
// @description Placement event calendar, registration and selection rosters, and reporting for the training & placement cell.
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	selectionRepo := repository.NewSelectionRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Cross-cutting services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Calendar.CacheTTL, logr, cfg.Calendar.CacheEnabled)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "ctp-api",
	})
	userSvc := service.NewUserService(userRepo, nil, logr)

	// Notification pipeline.
	sender := &service.LogSender{SenderName: cfg.Notifications.SenderName, Logger: logr}
	notificationWorker := service.NewNotificationWorker(notificationRepo, sender, cfg.Notifications.WorkerRetries, logr)
	notificationQueue := jobs.NewQueue("notifications", notificationWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, notificationQueue, cfg.Notifications.Enabled, logr)

	// Export pipeline.
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(eventRepo, registrationRepo, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, 3, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 3,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL: cfg.Exports.SignedURLTTL,
	})

	// Domain services.
	eventSvc := service.NewEventService(eventRepo, cacheSvc, nil, logr)
	calendarSvc := service.NewCalendarService(eventRepo, cacheSvc, cfg.Calendar.CacheTTL, logr)
	rosterSvc := service.NewRosterService(eventRepo, registrationRepo, selectionRepo, studentRepo,
		notificationSvc, cfg.Exports.AllowedMIMETypes, nil, logr)
	batchSvc := service.NewBatchService(batchRepo, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	dashboardSvc := service.NewDashboardService(eventRepo, studentRepo, notificationRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc, studentRepo)
	userHandler := handler.NewUserHandler(userSvc)
	calendarHandler := handler.NewCalendarHandler(eventSvc, calendarSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc, cfg.Exports.MaxUploadBytes)
	batchHandler := handler.NewBatchHandler(batchSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, cfg.Exports.MaxUploadBytes)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	notificationQueue.Start(ctx)
	reportQueue.Start(ctx)
	defer notificationQueue.Stop()
	defer reportQueue.Stop()

	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc, userRepo,
		authHandler, userHandler, calendarHandler, rosterHandler,
		batchHandler, studentHandler, notificationHandler, dashboardHandler, reportHandler, metricsHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	authSvc *service.AuthService,
	userRepo *repository.UserRepository,
	auth *handler.AuthHandler,
	users *handler.UserHandler,
	calendar *handler.CalendarHandler,
	roster *handler.RosterHandler,
	batches *handler.BatchHandler,
	students *handler.StudentHandler,
	notifications *handler.NotificationHandler,
	dashboard *handler.DashboardHandler,
	reports *handler.ReportHandler,
	metrics *handler.MetricsHandler,
) {
	api := r.Group(cfg.APIPrefix)

	// Public surface.
	api.POST("/auth/login", auth.Login)
	api.POST("/auth/refresh", auth.Refresh)
	api.POST("/auth/forgot-password", auth.ForgotPassword)
	api.POST("/auth/reset-password", auth.ResetPassword)
	api.GET("/export/:token", reports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", auth.Logout)
	authed.POST("/auth/change-password", auth.ChangePassword)
	authed.GET("/auth/me", auth.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTPO)
	staffOrTrainer := middleware.RequireRoles(models.RoleAdmin, models.RoleTPO, models.RoleTrainer)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	// Calendar and event lifecycle.
	authed.GET("/calendar", calendar.List)
	authed.GET("/calendar/grid", calendar.Grid)
	authed.GET("/calendar/day", calendar.Day)
	authed.GET("/calendar/deleted", adminOnly, calendar.ListDeleted)
	authed.POST("/calendar", staff,
		middleware.Audit(userRepo, models.AuditActionEventCreate, "placement_events"), calendar.Create)
	authed.GET("/calendar/:id", calendar.Get)
	authed.PUT("/calendar/:id", staff,
		middleware.Audit(userRepo, models.AuditActionEventUpdate, "placement_events"), calendar.Update)
	authed.DELETE("/calendar/:id", staff,
		middleware.Audit(userRepo, models.AuditActionEventDelete, "placement_events"), calendar.Delete)
	authed.PUT("/calendar/:id/cancel", staff,
		middleware.Audit(userRepo, models.AuditActionEventCancel, "placement_events"), calendar.Cancel)
	authed.PUT("/calendar/:id/complete", staff,
		middleware.Audit(userRepo, models.AuditActionEventUpdate, "placement_events"), calendar.Complete)

	// Per-event rosters.
	authed.POST("/calendar/:id/register", roster.Register)
	authed.GET("/calendar/:id/registered-students", staffOrTrainer, roster.RegisteredStudents)
	authed.GET("/calendar/:id/registered-students/export", staffOrTrainer, roster.ExportRegistered)
	authed.GET("/calendar/:id/selected-students", roster.SelectedStudents)
	authed.PUT("/calendar/:id/select-student", staff,
		middleware.Audit(userRepo, models.AuditActionStudentSelect, "event_selections"), roster.SelectStudent)
	authed.PUT("/calendar/:id/remove-selected-student", staff,
		middleware.Audit(userRepo, models.AuditActionStudentSelect, "event_selections"), roster.RemoveSelectedStudent)
	authed.PUT("/calendar/:id/upload-selected", staff,
		middleware.Audit(userRepo, models.AuditActionRosterUpload, "event_selections"), roster.UploadSelected)

	// Batch directory.
	authed.GET("/batches", batches.List)
	authed.GET("/batches/:id", batches.Get)
	authed.POST("/batches", staff, batches.Create)
	authed.PUT("/batches/:id", staff, batches.Update)
	authed.DELETE("/batches/:id", staff, batches.Deactivate)

	// Student directory.
	authed.GET("/students", staffOrTrainer, students.List)
	authed.GET("/students/:id", staffOrTrainer, students.Get)
	authed.POST("/students", staff, students.Create)
	authed.PUT("/students/:id", staff, students.Update)
	authed.DELETE("/students/:id", staff, students.Deactivate)
	authed.POST("/students/import", staff, students.Import)

	// Notifications, dashboard, reports.
	authed.GET("/notifications", notifications.List)
	authed.GET("/dashboard/summary", dashboard.Summary)
	authed.GET("/metrics/summary", staff, metrics.Summary)
	authed.POST("/reports/generate", staff, reports.Generate)
	authed.GET("/reports/:id", staff, reports.Status)

	// Account administration.
	authed.GET("/users", adminOnly, users.List)
	authed.GET("/users/:id", adminOnly, users.Get)
	authed.POST("/users", adminOnly, users.Create)
	authed.PUT("/users/:id", adminOnly, users.Update)
	authed.DELETE("/users/:id", adminOnly, users.Delete)
}
