package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/epicevents/epicevents/internal/app"
	"github.com/epicevents/epicevents/internal/auth"
	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/clients"
	"github.com/epicevents/epicevents/internal/contracts"
	"github.com/epicevents/epicevents/internal/events"
	"github.com/epicevents/epicevents/internal/observability"
	"github.com/epicevents/epicevents/internal/platform/db"
	"github.com/epicevents/epicevents/internal/shared"
	"github.com/epicevents/epicevents/internal/users"
	"github.com/epicevents/epicevents/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "epicevents_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	// Grants are loaded once at startup; permission edits require a restart.
	permissions := authz.NewPGPermissions(pool)
	table, err := permissions.Snapshot(ctx)
	if err != nil {
		logger.Error("load permission table", slog.Any("error", err))
		os.Exit(1)
	}
	engine := authz.NewEngine(table, logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, metrics)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, engine, logger, auditLogger)
	usersHandler := users.NewHandler(logger, usersService)

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(clientsRepo, engine, logger, auditLogger)
	clientsHandler := clients.NewHandler(logger, clientsService)

	contractsRepo := contracts.NewRepository(pool)
	contractsService := contracts.NewService(contractsRepo, clientsRepo, engine, logger, auditLogger)
	contractsHandler := contracts.NewHandler(logger, contractsService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	eventsRepo := events.NewRepository(pool)
	eventsService := events.NewService(eventsRepo, contractsRepo, clientsRepo, authService, jobsClient, engine, logger, auditLogger)
	eventsHandler := events.NewHandler(logger, eventsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		ClientsHandler:   clientsHandler,
		ContractsHandler: contractsHandler,
		EventsHandler:    eventsHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
