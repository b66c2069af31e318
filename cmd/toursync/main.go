package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/toursync/toursync-admin/internal/app"
	"github.com/toursync/toursync-admin/internal/auth"
	"github.com/toursync/toursync-admin/internal/branches"
	"github.com/toursync/toursync-admin/internal/changelog"
	"github.com/toursync/toursync-admin/internal/observability"
	"github.com/toursync/toursync-admin/internal/platform/cache"
	"github.com/toursync/toursync-admin/internal/platform/db"
	"github.com/toursync/toursync-admin/internal/rbac"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
	"github.com/toursync/toursync-admin/internal/users"
	"github.com/toursync/toursync-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	sessions := session.NewManager(
		session.NewRedisStore(redisClient, session.KeyPrefix(cfg.AppName)),
		session.Options{
			CookieName:    cfg.CookieSessionKey,
			TTL:           cfg.SessionTTL(),
			Secure:        cfg.IsProduction(),
			SingleSession: cfg.SingleSession,
		},
		logger,
	)
	refresher := session.NewRefresher(sessions, logger, 5*time.Second, metrics.ObserveSessionRefresh)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	var sink changelog.Sink = changelog.NewPostgresSink(dbpool)
	var jobClient *jobs.Client
	if cfg.ChangelogSink == app.SinkQueue {
		jobClient = jobs.NewClient(cfg.AsynqRedisOpt())
		sink = jobs.NewChangelogQueue(jobClient)
	}
	recorder := changelog.NewRecorder(sink, changelog.Options{
		Buffer:  cfg.ChangelogBuffer,
		Logger:  logger,
		Observe: metrics.ObserveChangelog,
	})

	evaluator := rbac.NewEvaluator(rbac.NewPostgresRules(dbpool), logger)
	rbacMiddleware := rbac.Middleware{Evaluator: evaluator, Logger: logger}

	branchService := branches.NewService(branches.NewRepository(dbpool))
	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(users.Deps{
		Repo:        userRepo,
		Branches:    branchService,
		Authz:       evaluator,
		Recorder:    recorder,
		Events:      changelog.NewEventsRepository(dbpool),
		Logger:      logger,
		CountryCode: cfg.CountryCode,
		BcryptCost:  cfg.BcryptCost,
	})

	authService := auth.NewService(userRepo, auth.NewRedisLimiter(redisClient, cfg.SigninAttemptsPerMinute), logger)

	inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Sessions:        sessions,
		Refresher:       refresher,
		CSRFManager:     csrfManager,
		AuthHandler:     auth.NewHandler(logger, authService, sessions, csrfManager),
		UsersHandler:    users.NewHandler(logger, userService, rbacMiddleware),
		BranchesHandler: branches.NewHandler(logger, branchService),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	refresher.Wait()
	recorder.Close()
	if jobClient != nil {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}
	logger.Info("shutdown complete", slog.Uint64("changelog_dropped", recorder.Dropped()))
}
