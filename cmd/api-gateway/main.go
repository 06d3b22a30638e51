package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/grantos/grantos-api/api/swagger"
	"github.com/grantos/grantos-api/internal/handler"
	"github.com/grantos/grantos-api/internal/middleware"
	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/internal/repository"
	"github.com/grantos/grantos-api/internal/service"
	"github.com/grantos/grantos-api/pkg/config"
	"github.com/grantos/grantos-api/pkg/database"
	"github.com/grantos/grantos-api/pkg/jobs"
	"github.com/grantos/grantos-api/pkg/logger"
	corsmiddleware "github.com/grantos/grantos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/grantos/grantos-api/pkg/middleware/requestid"
	"github.com/grantos/grantos-api/pkg/storage"

	rediscache "github.com/grantos/grantos-api/pkg/cache"
)

// @title GrantOS API
// @version 1.0.0
// @description Contract approval workflow engine
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	contractRepo := repository.NewContractRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Observability and caching.
	metricsSvc := service.NewMetricsService()
	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	}

	// Core services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "grantos-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	contractSvc := service.NewContractService(contractRepo, userRepo, logr)
	workflowSvc := service.NewWorkflowService(contractRepo, reviewRepo, userRepo, metricsSvc, service.WorkflowConfig{
		AllowDirectPublish: cfg.Workflow.AllowDirectPublish,
	}, logr)
	reviewSvc := service.NewReviewService(reviewRepo, contractRepo, userRepo, logr)
	archiveSvc := service.NewArchiveService(contractRepo, userRepo, logr)
	assignmentSvc := service.NewAssignmentService(contractRepo, userRepo, logr)
	dashboardSvc := service.NewDashboardService(contractRepo, cacheSvc, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	}, logr)

	// Document storage.
	docStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	docSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	documentSvc := service.NewDocumentService(contractRepo, docStorage, docSigner, cfg.Documents, userRepo, logr)

	// Report generation and async jobs.
	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(contractRepo, reportStorage, reportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, queue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	if cfg.Reports.Enabled {
		queue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	contractHandler := handler.NewContractHandler(contractSvc, workflowSvc, dashboardSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	archiveHandler := handler.NewArchiveHandler(archiveSvc, dashboardSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	reportHandler := handler.NewReportHandler(reportSvc, exportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.POST("/auth/reset-password", authHandler.ResetPassword)
	api.GET("/export/:token", reportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	authed.GET("/system/metrics", middleware.RequireRoles(models.RoleSuperAdmin), metricsHandler.Summary)

	users := authed.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleSuperAdmin))
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", userHandler.Create)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	contracts := authed.Group("/contracts")
	contracts.GET("", contractHandler.List)
	contracts.GET("/my-drafts", assignmentHandler.MyDrafts)
	contracts.GET("/assigned-to-me", assignmentHandler.AssignedToMe)
	contracts.GET("/assigned-by-me", assignmentHandler.AssignedByMe)
	contracts.POST("", middleware.Audit(userRepo, "contract_create", "contract"), contractHandler.Create)
	contracts.GET("/:id", contractHandler.Get)
	contracts.PATCH("/:id", contractHandler.Update)
	contracts.DELETE("/:id", middleware.Audit(userRepo, "contract_delete", "contract"), contractHandler.Delete)

	contracts.POST("/:id/publish", contractHandler.Publish)
	contracts.POST("/:id/review", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleProgramManager), contractHandler.SubmitReview)
	contracts.POST("/:id/decision", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleDirector), contractHandler.Decide)

	contracts.GET("/:id/reviews", reviewHandler.ContractReviews)
	contracts.POST("/:id/reviews/comments", reviewHandler.AddComment)
	authed.POST("/reviews/comments/:commentId/resolve", reviewHandler.ResolveComment)

	contracts.POST("/:id/archive", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleDirector), archiveHandler.Archive)
	archive := authed.Group("/archive")
	archive.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleDirector))
	archive.GET("/candidates", archiveHandler.Candidates)
	archive.POST("/batch", archiveHandler.BatchArchive)

	contracts.POST("/:id/documents", documentHandler.Upload)
	contracts.GET("/:id/documents/:docId/url", documentHandler.DownloadURL)
	contracts.GET("/:id/documents/download", documentHandler.Download)

	reports := authed.Group("/reports")
	reports.GET("/contracts", reportHandler.ContractReport)
	reports.GET("/contracts/export", reportHandler.ExportCSV)
	if cfg.Reports.Enabled {
		reports.POST("/generate", reportHandler.CreateJob)
		reports.GET("/:id/status", reportHandler.JobStatus)
	}

	if cfg.Dashboard.Enabled {
		authed.GET("/dashboard", dashboardHandler.Summary)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down")
		queue.Stop()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
