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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/solution-studio/ai-studio/internal/app"
	"github.com/solution-studio/ai-studio/internal/catalog"
	"github.com/solution-studio/ai-studio/internal/knowledge"
	"github.com/solution-studio/ai-studio/internal/observability"
	"github.com/solution-studio/ai-studio/internal/proposal"
	"github.com/solution-studio/ai-studio/internal/rbac"
	"github.com/solution-studio/ai-studio/internal/shared"
	"github.com/solution-studio/ai-studio/internal/twin"
	"github.com/solution-studio/ai-studio/internal/users"
	"github.com/solution-studio/ai-studio/internal/view"
	"github.com/solution-studio/ai-studio/internal/wizard"
	"github.com/solution-studio/ai-studio/jobs"
	"github.com/solution-studio/ai-studio/report"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	sessionManager := shared.NewSessionManager(redisClient, "studio_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	rbacService, err := rbac.NewSeededService(ctx, time.Now)
	if err != nil {
		logger.Error("seed rbac", slog.Any("error", err))
		os.Exit(1)
	}
	usersService, err := users.NewSeededService(ctx, rbacService, time.Now)
	if err != nil {
		logger.Error("seed users", slog.Any("error", err))
		os.Exit(1)
	}

	cat, err := catalog.Load()
	if err != nil {
		logger.Error("load catalog", slog.Any("error", err))
		os.Exit(1)
	}
	library, graph, err := knowledge.LoadSeed()
	if err != nil {
		logger.Error("load knowledge seed", slog.Any("error", err))
		os.Exit(1)
	}

	runner := twin.NewRunner(logger, twin.RunnerConfig{
		FPS:             cfg.TwinFPS,
		MaxFlows:        cfg.TwinMaxFlows,
		MaxRuns:         cfg.TwinMaxRuns,
		DefaultDuration: cfg.TwinDefaultDuration,
	}, twin.NewMetrics(metrics.Registerer()))

	wizardService := wizard.NewService(logger, wizard.NewStore(redisClient, cfg.SessionTTL), cat, runner)

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	proposalService := proposal.NewService(logger, proposal.NewStore(redisClient, cfg.ProposalTTL), wizardService, queue)
	engine, err := view.NewEngine()
	if err != nil {
		logger.Error("load view templates", slog.Any("error", err))
		os.Exit(1)
	}
	renderer, err := proposal.NewRenderer(engine, nil)
	if err != nil {
		logger.Error("init proposal renderer", slog.Any("error", err))
		os.Exit(1)
	}

	reportClient := report.NewClient(cfg.GotenbergURL)
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Metrics:          metrics,
		SessionHandler:   app.NewSessionHandler(logger, csrfManager),
		RBACHandler:      rbac.NewHandler(logger, rbacService),
		UsersHandler:     users.NewHandler(logger, usersService),
		CatalogHandler:   catalog.NewHandler(logger, cat, wizardService),
		WizardHandler:    wizard.NewHandler(logger, wizardService),
		TwinHandler:      twin.NewHandler(logger, runner),
		ProposalHandler:  proposal.NewHandler(logger, proposalService, renderer),
		KnowledgeHandler: knowledge.NewHandler(logger, library, graph),
		ReportHandler:    report.NewHandler(reportClient, logger),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
