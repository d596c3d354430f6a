package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/civica-api/api/swagger"
	"github.com/noah-isme/civica-api/internal/handler"
	"github.com/noah-isme/civica-api/internal/repository"
	"github.com/noah-isme/civica-api/internal/service"
	"github.com/noah-isme/civica-api/internal/workflow"
	"github.com/noah-isme/civica-api/pkg/config"
	"github.com/noah-isme/civica-api/pkg/database"
	"github.com/noah-isme/civica-api/pkg/jobs"
	"github.com/noah-isme/civica-api/pkg/logger"
	"github.com/noah-isme/civica-api/pkg/pubsub"
)

// @title Civica Inspection API
// @version 1.0.0
// @description Civic inspection workflow: student teams audit government offices, offices respond, headmasters approve and responders review or escalate.
// @BasePath /api/v1
// @schemes http https
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Notifications.Enabled {
		redisClient, err = pubsub.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, notifications will not be fanned out", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	officeRepo := repository.NewOfficeRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	inspectionRepo := repository.NewInspectionRepository(db)
	escalationRepo := repository.NewEscalationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var publisher *pubsub.Publisher
	if redisClient != nil {
		publisher = pubsub.NewPublisher(redisClient, cfg.Notifications.Channel)
	}
	worker := service.NewNotificationWorker(notificationRepo, userRepo, optionalPublisher(publisher), logr)

	var queue *jobs.Queue
	if cfg.Notifications.Enabled {
		queue = jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
			OnResult: func(job jobs.Job, err error) {
				metricsSvc.ObserveNotification(job.Type, err)
			},
		})
		queue.Start(ctx)
		defer queue.Stop()
	}
	notificationSvc := service.NewNotificationService(notificationRepo, optionalQueue(queue), logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, schoolRepo, officeRepo, validate, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, validate, logr)
	officeSvc := service.NewOfficeService(officeRepo, validate, logr)
	teamSvc := service.NewTeamService(teamRepo, userRepo, schoolRepo, inspectionRepo, db, validate, logr)
	templateSvc := service.NewTemplateService(templateRepo, inspectionRepo, validate, logr)

	assignmentSvc := service.NewAssignmentService(teamRepo, inspectionRepo, cfg.Assignment.Window, workflow.PickerFunc(rand.Intn), logr)

	inspectionSvc := service.NewInspectionService(
		inspectionRepo,
		escalationRepo,
		service.InspectionLookups{Schools: schoolRepo, Offices: officeRepo, Templates: templateRepo, Teams: teamRepo},
		assignmentSvc,
		db,
		notificationSvc,
		metricsSvc,
		userRepo,
		validate,
		logr,
	)
	escalationSvc := service.NewEscalationService(escalationRepo, inspectionRepo, db, notificationSvc, metricsSvc, logr)
	analyticsSvc := service.NewAnalyticsService(inspectionRepo, officeRepo, escalationRepo, nil, cfg.Compliance.OnTimeDays, logr)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, routeDeps{
		auth:          authSvc,
		audit:         userRepo,
		metrics:       metricsSvc,
		authHandler:   handler.NewAuthHandler(authSvc),
		users:         handler.NewUserHandler(userSvc),
		directory:     handler.NewDirectoryHandler(schoolSvc, officeSvc),
		teams:         handler.NewTeamHandler(teamSvc),
		templates:     handler.NewTemplateHandler(templateSvc),
		inspections:   handler.NewInspectionHandler(inspectionSvc),
		escalations:   handler.NewEscalationHandler(escalationSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		analytics:     handler.NewAnalyticsHandler(analyticsSvc),
		observability: handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
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

// optionalPublisher keeps a nil *pubsub.Publisher from becoming a non-nil interface.
func optionalPublisher(p *pubsub.Publisher) interface {
	Publish(ctx context.Context, v interface{}) (int64, error)
} {
	if p == nil {
		return nil
	}
	return p
}

func optionalQueue(q *jobs.Queue) interface{ Enqueue(job jobs.Job) error } {
	if q == nil {
		return nil
	}
	return q
}
