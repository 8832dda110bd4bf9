package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/field-audit-service/internal/api/http"
	"github.com/spec-kit/field-audit-service/internal/api/http/handlers"
	"github.com/spec-kit/field-audit-service/internal/auth"
	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/events"
	"github.com/spec-kit/field-audit-service/internal/evidence"
	"github.com/spec-kit/field-audit-service/internal/observability"
	"github.com/spec-kit/field-audit-service/internal/persistence"
	"github.com/spec-kit/field-audit-service/internal/repository"
	"github.com/spec-kit/field-audit-service/internal/service"
	"github.com/spec-kit/field-audit-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var (
		issueRepo      repository.IssueRepository
		initiativeRepo repository.InitiativeRepository
		userRepo       repository.UserRepository
	)
	if pg.Enabled() {
		issueRepo = repository.NewIssueRepository(pg.Pool)
		initiativeRepo = repository.NewInitiativeRepository(pg.Pool)
		userRepo = repository.NewUserRepository(pg.Pool)
	} else {
		issueRepo = repository.NewMemoryIssueRepository()
		initiativeRepo = repository.NewMemoryInitiativeRepository()
	}

	var statusStore service.EscalationStatusStore
	if redis.Enabled() {
		statusStore = persistence.NewEscalationStatusStore(redis.Client)
	}

	compressor := evidence.NewCompressor(cfg.Evidence, logger, metrics)
	blobs, err := evidence.NewDiskStore(cfg.Evidence.RootDir, compressor, logger)
	if err != nil {
		logger.Fatal("failed to open evidence store", zap.Error(err))
	}

	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:  issueRepo,
		BlobStore:  blobs,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	initiativeService := service.NewInitiativeService(service.InitiativeDependencies{
		InitiativeRepo: initiativeRepo,
		BlobStore:      blobs,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	reportService := service.NewReportService(issueRepo, cfg.Report, nil)
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		IssueRepo:   issueRepo,
		StatusStore: statusStore,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      cfg.Escalation,
	})
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger))

	var escalationWorker *worker.EscalationWorker
	if cfg.Escalation.Enabled {
		escalationWorker, err = worker.NewEscalationWorker(cfg.Escalation, escalationService, logger)
		if err != nil {
			logger.Fatal("failed to schedule escalation", zap.Error(err))
		}
		escalationWorker.Start()
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 0)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.App.BodyLimitMB * 1024 * 1024,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Issues:         handlers.NewIssuesHandler(issueService, nil),
		Initiatives:    handlers.NewInitiativesHandler(initiativeService),
		Reports:        handlers.NewReportsHandler(reportService),
		Admin:          handlers.NewAdminHandler(escalationService),
		Evidence:       handlers.NewEvidenceHandler(blobs),
		Metrics:        metrics,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if escalationWorker != nil {
		escalationWorker.Stop(shutdownCtx)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
