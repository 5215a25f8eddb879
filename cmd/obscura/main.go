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

	"github.com/obscura-studio/obscura/internal/app"
	"github.com/obscura-studio/obscura/internal/auth"
	"github.com/obscura-studio/obscura/internal/clients"
	"github.com/obscura-studio/obscura/internal/finance"
	"github.com/obscura-studio/obscura/internal/goals"
	"github.com/obscura-studio/obscura/internal/platform/cache"
	"github.com/obscura-studio/obscura/internal/platform/db"
	"github.com/obscura-studio/obscura/internal/reports"
	"github.com/obscura-studio/obscura/internal/settings"
	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/shoots"
	"github.com/obscura-studio/obscura/internal/view"
	"github.com/obscura-studio/obscura/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "obscura_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	clientsRepo := clients.NewRepository(dbpool)
	clientsService := clients.NewService(clientsRepo)
	clientsHandler := clients.NewHandler(logger, clientsService, templates, csrfManager)

	settingsRepo := settings.NewRepository(dbpool)
	settingsService := settings.NewService(settingsRepo)
	settingsHandler := settings.NewHandler(logger, settingsService, templates, csrfManager)

	shootsRepo := shoots.NewRepository(dbpool)
	shootsService := shoots.NewService(shootsRepo)
	shootsHandler := shoots.NewHandler(logger, shootsService, clientsService, settingsService, templates, csrfManager)

	financeRepo := finance.NewRepository(dbpool)
	financeService := finance.NewService(financeRepo)
	financeHandler := finance.NewHandler(logger, financeService, templates, csrfManager)

	goalsRepo := goals.NewRepository(dbpool)
	goalsService := goals.NewService(goalsRepo)
	goalsHandler := goals.NewHandler(logger, goalsService, templates, csrfManager)

	reportsRepo := reports.NewRepository(dbpool)
	reportsService := reports.NewService(reportsRepo)
	reportsHandler := reports.NewHandler(logger, reportsService, templates, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     authHandler,
		ShootsHandler:   shootsHandler,
		FinanceHandler:  financeHandler,
		ClientsHandler:  clientsHandler,
		SettingsHandler: settingsHandler,
		GoalsHandler:    goalsHandler,
		ReportsHandler:  reportsHandler,
		JobsHandler:     jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
}
