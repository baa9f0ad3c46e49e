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

	"github.com/go-playground/validator/v10"

	"github.com/medcampus/sims-api/internal/handler"
	"github.com/medcampus/sims-api/internal/importer"
	"github.com/medcampus/sims-api/internal/middleware"
	"github.com/medcampus/sims-api/internal/repository"
	"github.com/medcampus/sims-api/internal/router"
	"github.com/medcampus/sims-api/internal/service"
	"github.com/medcampus/sims-api/pkg/cache"
	"github.com/medcampus/sims-api/pkg/config"
	"github.com/medcampus/sims-api/pkg/database"
	"github.com/medcampus/sims-api/pkg/jobs"
	"github.com/medcampus/sims-api/pkg/logger"
	"github.com/medcampus/sims-api/pkg/sign"
	"github.com/medcampus/sims-api/pkg/storage"
)

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, roster caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Imports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("storage init failed", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	examRepo := repository.NewExamRepository(db)
	resultRepo := repository.NewResultRepository(db)
	financeRepo := repository.NewFinanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	importJobRepo := repository.NewImportJobRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tx := repository.NewTransactor(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sims-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, validate, logr)

	importService := service.NewImportService(
		importJobRepo, studentRepo, facultyRepo, academicRepo, tx, store,
		importer.NewPhoneNormalizer(cfg.Imports.PhoneCountryCode),
		nil, validate, logr,
		service.ImportServiceConfig{
			DuplicateWindow:     cfg.Imports.DuplicateWindow,
			AsyncCommitRowLimit: cfg.Imports.AsyncCommitRowLimit,
		},
	)

	attendanceService := service.NewAttendanceService(
		sessionRepo, attendanceRepo, facultyRepo, tx, redisClient, validate, logr,
		service.AttendanceServiceConfig{
			RosterCacheTTL:       cfg.Attendance.RosterCacheTTL,
			EligibilityThreshold: float64(cfg.Attendance.EligibilityThreshold),
		},
	)

	examService := service.NewExamService(examRepo, validate, logr)
	resultService := service.NewResultService(resultRepo, examRepo, studentRepo, tx, validate, logr)
	financeService := service.NewFinanceService(financeRepo, studentRepo, tx, validate, logr)
	notificationService := service.NewNotificationService(notificationRepo, studentRepo, userRepo, nil, validate, logr)
	timetableService := service.NewTimetableService(repository.NewTimetableRepository(db), validate, logr)

	signer := sign.NewTokenSigner(cfg.Transcripts.SigningSecret, cfg.Transcripts.TokenTTL)
	transcriptService := service.NewTranscriptService(studentRepo, resultRepo, examRepo, signer, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	importQueue := jobs.NewQueue("import-commit", observed(metrics, "import-commit", importService.HandleCommitJob), jobs.QueueConfig{
		Workers:    cfg.Imports.WorkerConcurrency,
		MaxRetries: cfg.Imports.WorkerRetries,
		Logger:     logr,
	})
	importQueue.Start(ctx)
	defer importQueue.Stop()
	importService.SetQueue(importQueue)

	fanoutQueue := jobs.NewQueue("notification-fanout", observed(metrics, "notification-fanout", notificationService.HandleFanoutJob), jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	fanoutQueue.Start(ctx)
	defer fanoutQueue.Stop()
	notificationService.SetQueue(fanoutQueue)

	audit := middleware.NewAuditRecorder(auditRepo, logr, cfg.Audit.MaxBodyBytes)

	engine := router.New(router.Dependencies{
		Config:  cfg,
		Logger:  logr,
		Auth:    authService,
		Metrics: metrics,
		Audit:   audit,

		AuthHandler:         handler.NewAuthHandler(authService, userService),
		UserHandler:         handler.NewUserHandler(userService),
		ImportHandler:       handler.NewImportHandler(importService),
		StudentHandler:      handler.NewStudentHandler(studentService, transcriptService),
		TranscriptHandler:   handler.NewTranscriptHandler(transcriptService),
		AttendanceHandler:   handler.NewAttendanceHandler(attendanceService),
		ExamHandler:         handler.NewExamHandler(examService),
		ResultHandler:       handler.NewResultHandler(resultService),
		FinanceHandler:      handler.NewFinanceHandler(financeService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		TimetableHandler:    handler.NewTimetableHandler(timetableService),
		AuditHandler:        handler.NewAuditHandler(auditRepo),
		HealthHandler:       handler.NewHealthHandler(db, redisClient, cfg.Version),
		MetricsHandler:      handler.NewMetricsHandler(metrics),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// observed wraps a queue handler with job metrics.
func observed(metrics *service.MetricsService, queue string, h jobs.Handler) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		start := time.Now()
		err := h(ctx, job)
		metrics.ObserveJob(queue, time.Since(start), err)
		return err
	}
}
