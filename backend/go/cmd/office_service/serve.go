package main

import (
	"AgentOffice/backend/go/internal/config"
	kafkadb "AgentOffice/backend/go/internal/database/kafka"
	mongodb "AgentOffice/backend/go/internal/database/mongo"
	redisdb "AgentOffice/backend/go/internal/database/redis"
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/llm"
	"AgentOffice/backend/go/internal/metrics"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/api"
	"AgentOffice/backend/go/internal/office_service/consumer"
	"AgentOffice/backend/go/internal/office_service/fanout"
	"AgentOffice/backend/go/internal/office_service/monitor"
	"AgentOffice/backend/go/internal/office_service/notifier"
	"AgentOffice/backend/go/internal/office_service/service"
	"AgentOffice/backend/go/internal/office_service/state"
	"AgentOffice/backend/go/internal/office_service/store"
	"AgentOffice/backend/go/internal/office_service/workflow"
	pkghttp "AgentOffice/backend/go/pkg/http"
	"AgentOffice/backend/go/pkg/httpmiddleware"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	telegramTimeout = 15 * time.Second
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, websocket and background loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML configuration")
	return cmd
}

func serve(cfg *config.AppConfig) error {
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("invalid logger level: %w", err)
	}
	logger.Init(level)
	log := logger.New(cfg.App.Name, "", "")
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	gw, err := rowstore.Open(cfg, log, m)
	if err != nil {
		return fmt.Errorf("open row store: %w", err)
	}
	rows := store.New(gw)

	agents := state.New(cfg.Lifecycle.Agents, state.Options{
		HistoryLimit:    cfg.Lifecycle.HistoryLimit,
		SnapshotHistory: cfg.Lifecycle.SnapshotHistory,
		TaskTextLimit:   cfg.Lifecycle.TaskTextLimit,
	})
	if rows.Available() {
		history := rows.RecentChat(ctx, cfg.Lifecycle.HistoryLimit)
		agents.LoadHistory(history)
		log.WithField("messages", len(history)).Info("chat history restored")
	}

	var closers []io.Closer
	var sinks []fanout.Sink
	kc, err := kafkadb.Connect(cfg.Databases.Kafka, log.Named("kafka"))
	switch {
	case errors.Is(err, kafkadb.ErrNotConfigured):
	case err != nil:
		log.WithErr(err).Warn("kafka unavailable, events stay local")
	default:
		closers = append(closers, kc)
		if cfg.Databases.Kafka.EventsTopic != "" {
			pub := kafkadb.NewEventPublisher(kc)
			sinks = append(sinks, pub)
			closers = append(closers, pub)
		}
	}

	hub := fanout.NewHub(log, m)
	broadcaster := fanout.NewBroadcaster(hub, log, m, sinks...)

	n, err := newNotifier(ctx, cfg, log, m)
	if err != nil {
		return err
	}

	workflowClient, err := pkghttp.NewClient(cfg.Middleware.CircuitBreaker,
		pkghttp.WithName("workflow"),
		pkghttp.WithBreakerHook(m.BreakerHook()),
	)
	if err != nil {
		return fmt.Errorf("workflow client: %w", err)
	}
	dispatcher := workflow.New(cfg.Workflow, workflowClient)
	if !dispatcher.Configured() {
		log.Warn("workflow webhook not configured, tasks will not be dispatched")
	}

	model, err := llm.NewClient(ctx, cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Warn("llm not configured, reflection and planning are disabled")
	case err != nil:
		return fmt.Errorf("llm client: %w", err)
	}

	deps := service.Deps{
		State:       agents,
		Store:       rows,
		Broadcast:   broadcaster.Broadcast,
		Notifier:    n,
		Dispatcher:  dispatcher,
		Metrics:     m,
		Log:         log,
		LLM:         model,
		ClientCount: hub.Len,
	}
	svc := service.NewOfficeService(deps, cfg.Lifecycle, cfg.App.Version)

	var callbacks *consumer.CallbackConsumer
	if kc != nil && cfg.Databases.Kafka.CallbacksTopic != "" {
		callbacks = consumer.NewCallbackConsumer(kc.NewCallbackReader(), svc, log)
		closers = append(closers, callbacks)
	}

	mon := monitor.New(cfg.Monitor, rows, agents, n, dispatcher, log)

	router := api.NewRouter(api.NewAPI(svc, hub, m, log, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JwtSecret,
	}))
	srv, err := pkghttp.NewServer(cfg, router,
		pkghttp.WithAddress(cfg.Server.Address),
		pkghttp.WithMiddleware(httpmiddleware.RequestID),
	)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return broadcaster.Run(gctx) })
	g.Go(func() error { return svc.RunStaleSweeper(gctx) })
	g.Go(func() error { return mon.Run(gctx) })
	if callbacks != nil {
		g.Go(func() error { return callbacks.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("Starting HTTP server on " + srv.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	svc.Wait()
	n.Wait()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing client")
		}
	}
	if err := redisdb.Close(); err != nil {
		log.WithErr(err).Error("Error closing redis")
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := mongodb.Close(closeCtx); err != nil {
		log.WithErr(err).Error("Error disconnecting from MongoDB")
	}

	log.Info("Server gracefully stopped")
	return runErr
}

// newNotifier builds the Telegram notifier. Alert cooldowns live in Redis
// when an address is configured so restarts do not re-send alerts.
func newNotifier(ctx context.Context, cfg *config.AppConfig, log *logger.Logger, m *metrics.Metrics) (*notifier.Notifier, error) {
	client, err := pkghttp.NewClient(cfg.Middleware.CircuitBreaker,
		pkghttp.WithTimeout(telegramTimeout),
		pkghttp.WithName("telegram"),
		pkghttp.WithBreakerHook(m.BreakerHook()),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	tg := notifier.NewTelegram(cfg.Telegram, client)
	if !tg.Configured() {
		log.Warn("telegram not configured, notifications are disabled")
	}

	period := config.Duration(cfg.Monitor.AlertCooldown, 15*time.Minute)
	var cooldown notifier.Cooldown = notifier.NewMemoryCooldown(period)
	if cfg.Databases.Redis.Address != "" {
		rdb, err := redisdb.GetClient(ctx, &cfg.Databases.Redis, log)
		if err != nil {
			log.WithErr(err).Warn("redis unavailable, alert cooldown kept in memory")
		} else {
			cooldown = notifier.NewRedisCooldown(rdb, period, log)
		}
	}
	return notifier.New(tg, cooldown, log, m), nil
}
