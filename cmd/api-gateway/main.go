package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kketzal/EVALUACION-DESEMPENO-sub000/api/swagger"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/handler"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/middleware"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/repository"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/service"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/cache"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/config"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/database"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/export"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/logger"
	corsmiddleware "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/middleware/requestid"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/storage"
)

// @title Evaluacion del Desempeno API
// @version 1.0.0
// @description Scoring and versioning engine for biennial worker performance evaluations
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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, session mirroring and caching disabled", "error", err)
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 0, logr, redisClient != nil)
	mirror := service.NewSessionMirror(cacheSvc, cfg.Sessions.MirrorTTL)

	fileStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("uploads directory unusable", "error", err)
	}

	evaluationRepo := repository.NewEvaluationRepository(db)
	criterionRepo := repository.NewCriterionRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	fileRepo := repository.NewFileRepository(db)
	workerRepo := repository.NewWorkerRepository(db)
	userRepo := repository.NewUserRepository(db)

	validate := validator.New()

	purgeSvc := service.NewPurgeService(fileStorage, logr)
	purgeSvc.Start(context.Background())
	defer purgeSvc.Stop()

	sessions := service.NewSessionRegistry(cfg.Sessions.TTL)
	lifecycleSvc := service.NewEvaluationService(
		evaluationRepo, criterionRepo, evidenceRepo, scoreRepo, fileRepo,
		workerRepo, fileStorage, mirror, purgeSvc, sessions, metricsSvc,
		service.EvaluationServiceConfig{
			MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		},
		logr,
	)
	workerSvc := service.NewWorkerService(workerRepo, cacheSvc, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(lifecycleSvc, workerRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	workerHandler := handler.NewWorkerHandler(workerSvc, lifecycleSvc)
	evaluationHandler := handler.NewEvaluationHandler(lifecycleSvc, exportSvc)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	// The rubric catalog is static product content; the UI renders it on
	// the login screen, so it only carries optional claims.
	api.GET("/competencies", middleware.OptionalJWT(authSvc), workerHandler.Competencies)

	protected := api.Group("", middleware.JWT(authSvc))
	protected.GET("/status", metricsHandler.Status)

	protected.GET("/workers", workerHandler.List)
	protected.GET("/workers/:id", workerHandler.Get)
	protected.GET("/workers/:id/evaluations", workerHandler.Evaluations)

	sessionsGroup := protected.Group("/sessions")
	sessionsGroup.POST("", evaluationHandler.StartSession)
	sessionsGroup.GET("/:id", evaluationHandler.GetState)
	sessionsGroup.DELETE("/:id", evaluationHandler.EndSession)
	sessionsGroup.POST("/:id/worker", evaluationHandler.SelectWorker)
	sessionsGroup.POST("/:id/evaluations", evaluationHandler.CreateEvaluation)
	sessionsGroup.POST("/:id/load/:evaluationId", evaluationHandler.Load)
	sessionsGroup.PUT("/:id/criteria", evaluationHandler.UpdateCriterion)
	sessionsGroup.PUT("/:id/evidence", evaluationHandler.UpdateEvidence)
	sessionsGroup.PUT("/:id/scoring-mode", evaluationHandler.SetScoringMode)
	sessionsGroup.PUT("/:id/settings", evaluationHandler.SetAutoSave)
	sessionsGroup.POST("/:id/files/:conductId", evaluationHandler.UploadFiles)
	sessionsGroup.DELETE("/:id/files/:fileId", evaluationHandler.RemoveFile)
	sessionsGroup.POST("/:id/save", evaluationHandler.Save)
	sessionsGroup.GET("/:id/changes", evaluationHandler.Changes)

	protected.GET("/evaluations/:id", evaluationHandler.GetEvaluation)
	protected.DELETE("/evaluations/:id", middleware.RequireRoles(models.RoleAdmin), evaluationHandler.DeleteEvaluation)
	protected.GET("/evaluations/:id/export", evaluationHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
