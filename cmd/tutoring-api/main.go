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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutor-match-api/api/swagger"
	"github.com/noah-isme/tutor-match-api/internal/handler"
	"github.com/noah-isme/tutor-match-api/internal/middleware"
	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	"github.com/noah-isme/tutor-match-api/internal/service"
	"github.com/noah-isme/tutor-match-api/pkg/cache"
	"github.com/noah-isme/tutor-match-api/pkg/config"
	"github.com/noah-isme/tutor-match-api/pkg/database"
	"github.com/noah-isme/tutor-match-api/pkg/jobs"
	"github.com/noah-isme/tutor-match-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-match-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-match-api/pkg/middleware/requestid"
)

// @title Tutor Match API
// @version 1.0.0
// @description Tutor ranking and session assignment for peer tutoring coordinators.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type handlers struct {
	tutors   *handler.TutorHandler
	requests *handler.RequestHandler
	sessions *handler.SessionHandler
	admin    *handler.AdminHandler
	metrics  *handler.MetricsHandler
}

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
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Matching.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, candidate cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Matching.CacheTTL, logr, cfg.Matching.CacheEnabled && redisClient != nil)

	tutorRepo := repository.NewTutorRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	validate := validator.New()
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: cfg.JWT.Expiry})
	tutorSvc := service.NewTutorService(tutorRepo, cacheSvc, validate, logr)
	requestSvc := service.NewRequestService(db, requestRepo, sessionRepo, tutorRepo, validate, logr)
	matchingSvc := service.NewMatchingService(requestRepo, sessionRepo, tutorRepo, cacheSvc, metricsSvc, validate, logr, service.MatchingConfig{
		CacheTTL:      cfg.Matching.CacheTTL,
		MaxCandidates: cfg.Matching.MaxCandidates,
	})
	assignmentSvc := service.NewAssignmentService(db, requestRepo, sessionRepo, tutorRepo, cacheSvc, metricsSvc, validate, logr)
	termSvc := service.NewTermService(db, requestRepo, sessionRepo, tutorRepo, cacheSvc, logr)
	auditSvc := service.NewAuditService(db, tutorRepo, sessionRepo, cacheSvc, metricsSvc, logr)
	reportSvc := service.NewReportService(tutorRepo, sessionRepo, logr)

	if cfg.LoadAudit.Enabled {
		queue := jobs.NewQueue("load-audit", auditSvc.HandleJob(cfg.LoadAudit.AutoRepair), jobs.QueueConfig{
			Workers:    cfg.LoadAudit.Workers,
			MaxRetries: 2,
			RetryDelay: 30 * time.Second,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		if err := queue.Every(cfg.LoadAudit.Interval, service.LoadAuditJobType, cfg.LoadAudit.AutoRepair); err != nil {
			logr.Error("failed to schedule load audit", zap.Error(err))
		}
	}

	h := handlers{
		tutors:   handler.NewTutorHandler(tutorSvc),
		requests: handler.NewRequestHandler(requestSvc, matchingSvc, assignmentSvc),
		sessions: handler.NewSessionHandler(assignmentSvc),
		admin:    handler.NewAdminHandler(termSvc, auditSvc, reportSvc, metricsSvc),
		metrics:  handler.NewMetricsHandler(metricsSvc.Handler(), readinessChecks(db, cacheRepo)),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, logr, h, tokenSvc, metricsSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
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

func newRouter(cfg *config.Config, logr *zap.Logger, h handlers, tokens *service.TokenService, metricsSvc *service.MetricsService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	r.Use(middleware.ResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens), middleware.RequireRoles(models.RoleCoordinator))

	tutors := api.Group("/tutors")
	tutors.GET("", h.tutors.List)
	tutors.POST("", h.tutors.Create)
	tutors.GET("/:id", h.tutors.Get)
	tutors.PUT("/:id", h.tutors.Update)
	tutors.DELETE("/:id", middleware.Audit(logr, "tutor.deactivate"), h.tutors.Delete)

	requests := api.Group("/requests")
	requests.GET("", h.requests.List)
	requests.POST("", h.requests.Create)
	requests.GET("/:id", h.requests.Get)
	requests.DELETE("/:id", middleware.Audit(logr, "request.delete"), h.requests.Delete)
	requests.GET("/:id/candidates", h.requests.Candidates)

	sessions := api.Group("/sessions")
	sessions.POST("/:id/assign", middleware.Audit(logr, "session.assign"), h.sessions.Assign)
	sessions.DELETE("/:id/assign", middleware.Audit(logr, "session.unassign"), h.sessions.Unassign)
	sessions.POST("/:id/no-match", middleware.Audit(logr, "session.no_match"), h.sessions.NoMatch)
	sessions.DELETE("/:id", middleware.Audit(logr, "session.delete"), h.sessions.Delete)

	admin := api.Group("/admin")
	admin.POST("/term/reset", middleware.RequireRoles(), middleware.Audit(logr, "term.reset"), h.admin.ResetTerm)
	admin.POST("/audits/load", middleware.RequireRoles(), middleware.Audit(logr, "load.audit"), h.admin.AuditLoads)
	admin.GET("/reports/roster", h.admin.Roster)
	admin.GET("/metrics", h.admin.Metrics)

	return r
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if cacheRepo.Enabled() {
		checks["redis"] = cacheRepo.Ping
	}
	return checks
}
