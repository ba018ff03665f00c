package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"arbd/internal/api"
	"arbd/internal/bot"
	"arbd/internal/config"
	"arbd/internal/exchange"
	"arbd/internal/notify"
	"arbd/internal/state"
	"arbd/internal/websocket"
	"arbd/pkg/utils"
)

// runtimeMetricsInterval - период обновления runtime метрик
const runtimeMetricsInterval = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: $ARB_CONFIG or config/local.yaml)")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Логгер ещё не настроен
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.General.LogLevel,
		Format: cfg.General.LogFormat,
	}).Logger
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Daemon failed", zap.Error(err))
	}
	logger.Info("Daemon exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	resetOffset, err := cfg.Risk.ResetOffset()
	if err != nil {
		return err
	}

	store := state.NewStore(cfg.Notify.OpportunityLogSize)
	risk := bot.NewRiskEngine(bot.LimitsFromConfig(cfg.Risk), logger)

	adapters, err := exchange.NewAdapters(cfg.Venues, logger)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(logger, cfg.Server.AllowedOrigins)
	publishers := notify.Multi{notify.NewHubPublisher(hub)}
	if cfg.Notify.NATSURL != "" {
		nats, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer nats.Close()
		publishers = append(publishers, nats)
	}

	exec := bot.NewExecutor(risk, store, publishers, cfg.General.DryRun, logger)

	loops, err := bot.BuildLoops(cfg, adapters, exec, risk, logger)
	if err != nil {
		return err
	}

	runner := bot.NewRunner(logger)
	for _, l := range loops {
		runner.Add(l)
	}
	runner.AddTask("daily_reset", func(ctx context.Context) { risk.RunDailyReset(ctx, resetOffset) })
	runner.AddTask("pnl_tracker", bot.NewPnLTracker(store, risk, bot.DefaultPnLInterval, logger).Run)
	runner.AddTask("runtime_metrics", runRuntimeMetrics)
	runner.AddTask("websocket_hub", hub.Run)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if cfg.Server.Enabled {
		server = &http.Server{
			Addr: cfg.Server.Addr(),
			Handler: api.SetupRoutes(&api.Dependencies{
				Store:          store,
				Risk:           risk,
				Strategies:     cfg.EnabledStrategies(),
				DryRun:         cfg.General.DryRun,
				Stream:         hub.ServeWS,
				TokenHash:      cfg.Server.TokenHash,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Logger:         logger,
			}),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Запуск сервера в отдельной горутине
		go func() {
			logger.Info("Starting status server", zap.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server failed", zap.Error(err))
				stop()
			}
		}()
	}

	logger.Info("Starting strategies",
		zap.Int("strategies", runner.Len()),
		zap.Bool("dry_run", cfg.General.DryRun),
		zap.Int("venues", len(adapters)),
	)

	runErr := runner.Run(ctx)

	// Graceful shutdown
	logger.Info("Shutting down...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Status server forced to shutdown", zap.Error(err))
		}
	}
	return runErr
}

func runRuntimeMetrics(ctx context.Context) {
	ticker := time.NewTicker(runtimeMetricsInterval)
	defer ticker.Stop()

	for {
		bot.UpdateRuntimeMetrics()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
