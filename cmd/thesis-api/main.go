package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gradworks/thesis-flow-api/api/swagger"
	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/handler"
	"github.com/gradworks/thesis-flow-api/internal/middleware"
	"github.com/gradworks/thesis-flow-api/internal/models"
	"github.com/gradworks/thesis-flow-api/internal/notify"
	"github.com/gradworks/thesis-flow-api/internal/repository"
	"github.com/gradworks/thesis-flow-api/internal/service"
	"github.com/gradworks/thesis-flow-api/pkg/cache"
	"github.com/gradworks/thesis-flow-api/pkg/config"
	"github.com/gradworks/thesis-flow-api/pkg/database"
	"github.com/gradworks/thesis-flow-api/pkg/export"
	"github.com/gradworks/thesis-flow-api/pkg/jobs"
	"github.com/gradworks/thesis-flow-api/pkg/logger"
	corsmiddleware "github.com/gradworks/thesis-flow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gradworks/thesis-flow-api/pkg/middleware/requestid"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

// @title Thesis Flow API
// @version 0.1.0
// @description Thesis workflow engine: team assignment, review iterations and the signing chain
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, status cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	artifacts, err := storage.NewArtifactStore(cfg.Artifacts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("artifact store init failed", "error", err)
	}

	students := repository.NewStudentRepository(db)
	staff := repository.NewStaffRepository(db)
	theses := repository.NewThesisRepository(db)
	requests := repository.NewRequestRepository(db)
	accounts := repository.NewAccountRepository(db)
	oplog := repository.NewOplogRepository(db)
	statusCache := repository.NewCacheRepository(redisClient, logr)

	publisher := events.NewPublisher(cfg.Events, logr)
	defer publisher.Close() //nolint:errcheck
	mail := notify.NewMailer(cfg.Notifications, logr)
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(accounts, students, staff, cfg.JWT, logr)
	assignmentSvc := service.NewAssignmentService(students, staff, theses, oplog, statusCache, publisher, logr)
	reviewSvc := service.NewReviewService(students, staff, theses, artifacts, statusCache, publisher, mail, export.NewReviewDocumentRenderer(), logr)
	signingSvc := service.NewSigningService(students, staff, theses, artifacts, oplog, statusCache, publisher, logr)
	plagiarismSvc := service.NewPlagiarismService(theses, statusCache, logr)
	requestSvc := service.NewRequestService(requests, students, staff, assignmentSvc, mail, logr)
	topicSvc := service.NewTopicService(students, mail, logr)
	thesisSvc := service.NewThesisService(students, staff, theses, artifacts, oplog, statusCache, publisher, logr)
	reconcileSvc := service.NewReconcileService(students, staff, theses, oplog, logr)
	exportSvc := service.NewExportService(theses, students, export.NewCSVExporter(), export.NewPDFExporter(), signer, cfg.Exports.StorageDir, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	topicHandler := handler.NewTopicHandler(topicSvc)
	thesisHandler := handler.NewThesisHandler(thesisSvc, plagiarismSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc, metricsSvc)
	signingHandler := handler.NewSigningHandler(signingSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Artifacts.MaxFileSizeBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/provision", middleware.RequireRoles(), authHandler.Provision)

	authed.POST("/students/:id/team",
		middleware.RequireRoles(models.RoleHOD, models.RoleDean), assignmentHandler.AssignTeam)

	authed.POST("/requests",
		middleware.RequireRoles(models.RoleSupervisor), requestHandler.Create)
	authed.POST("/requests/:id/accept",
		middleware.RequireRoles(models.RoleStudent), requestHandler.Accept)
	authed.POST("/requests/:id/decline",
		middleware.RequireRoles(models.RoleStudent), requestHandler.Decline)

	authed.POST("/students/:id/topic",
		middleware.RequireRoles(models.RoleStudent, models.RoleSupervisor), topicHandler.Propose)
	authed.POST("/students/:id/topic/approve",
		middleware.RequireRoles(models.RoleSupervisor, models.RoleHOD), topicHandler.Approve)
	authed.POST("/students/:id/topic/response",
		middleware.RequireRoles(models.RoleStudent), topicHandler.Respond)

	authed.POST("/theses",
		middleware.RequireRoles(models.RoleStudent), thesisHandler.Submit)
	authed.POST("/theses/:id/countersign",
		middleware.RequireRoles(models.RoleStudent), thesisHandler.CounterSign)
	authed.POST("/theses/:id/resubmit",
		middleware.RequireRoles(models.RoleStudent), thesisHandler.Resubmit)
	authed.DELETE("/theses/:id",
		middleware.RequireRoles(models.RoleStudent), thesisHandler.Delete)
	authed.GET("/theses/:id/status", thesisHandler.Status)

	authed.POST("/theses/:id/plagiarism",
		middleware.RequireRoles(), thesisHandler.RecordPlagiarism)
	authed.GET("/theses/:id/plagiarism", thesisHandler.GetPlagiarism)

	staffOnly := middleware.RequireRoles(models.RoleConsultant, models.RoleSupervisor, models.RoleReviewer)
	authed.POST("/theses/:id/reviews/:role", staffOnly, reviewHandler.Submit)
	authed.POST("/theses/:id/reviews/:role/rereview", staffOnly, reviewHandler.ReReview)
	authed.GET("/theses/:id/reviews/:role/document",
		middleware.MinRole(models.RoleConsultant), signingHandler.GetUnsigned)

	authed.POST("/theses/:id/signatures/hod",
		middleware.RequireRoles(models.RoleHOD), signingHandler.UploadHodSigned)
	authed.POST("/theses/:id/signatures/dean",
		middleware.RequireRoles(models.RoleDean), signingHandler.UploadDeanSigned)
	authed.POST("/theses/:id/signatures/:role", staffOnly, signingHandler.UploadPartySigned)
	authed.GET("/theses/:id/signatures/final",
		middleware.MinRole(models.RoleStudent), signingHandler.GetFinalSigned)

	authed.GET("/theses/:id/history/export",
		middleware.MinRole(models.RoleConsultant), exportHandler.ExportHistory)
	api.GET("/exports/download", exportHandler.Download)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reconciler.Enabled {
		queue := jobs.NewQueue("reconciler", reconcileSvc.Handler(), jobs.QueueConfig{
			Workers:    cfg.Reconciler.Workers,
			MaxRetries: cfg.Reconciler.Retries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Reconciler.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "reconcile"}); err != nil {
						logr.Sugar().Warnw("failed to enqueue reconciliation", "error", err)
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
