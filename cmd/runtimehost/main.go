package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"svcrunner/internal/config"
	"svcrunner/internal/metricsrecorder"
	"svcrunner/internal/observability"
	"svcrunner/internal/persistence"
	"svcrunner/internal/runtime/scheduler"
	"svcrunner/internal/services/echotest"
	"svcrunner/internal/services/ingress"
	"svcrunner/internal/services/logwriter"
	"svcrunner/internal/services/parser"
	"svcrunner/internal/services/ratelimited"
	"svcrunner/internal/statusapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	runtimeCfg := config.GetRuntimeConfig()

	logger := observability.GetLoggerFromEnv(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting runtime host",
		zap.String("log_level", cfg.LogLevel),
		zap.Int("max_workers", runtimeCfg.MaxWorkers))

	otelShutdown, err := observability.SetupOpenTelemetry("runtimehost", runtimeCfg.MaxWorkers, logger)
	if err != nil {
		logger.Fatal("failed to set up OpenTelemetry", zap.Error(err))
	}
	defer otelShutdown()

	slogLogger := slog.Default()

	ctx := context.Background()

	postgres, err := persistence.NewPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.RunMigrations("internal/metricsrecorder/migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := persistence.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	promMetrics := observability.NewMetrics()
	exporter := observability.NewExporter(promMetrics)

	sched := scheduler.New(runtimeCfg.MaxWorkers, slogLogger)
	for i := 0; i < sched.WorkerCount(); i++ {
		w := sched.Worker(i)
		w.SetTickPeriodMs(runtimeCfg.TickPeriodMs)
		w.SetErrorThreshold(runtimeCfg.ErrorThreshold)
	}

	loggerSvc := logwriter.New("logger", runtimeCfg.DefaultPeriodMs, runtimeCfg.InboxCapacity, sched, "runtime.log", slogLogger)
	parserSvc := parser.New("parser", runtimeCfg.DefaultPeriodMs, runtimeCfg.InboxCapacity, sched, "logger", slogLogger)
	ingressSvc := ingress.New("ingress", runtimeCfg.DefaultPeriodMs, runtimeCfg.InboxCapacity, sched, cfg.NATSURL, cfg.IngressSubject, "parser", slogLogger)
	rateLimitedSvc := ratelimited.New("rate-limited-job", runtimeCfg.DefaultPeriodMs, sched, redisClient, 5, 10, slogLogger)
	echoSvc := echotest.New("startup-check", runtimeCfg.DefaultPeriodMs, sched, slogLogger)

	if err := sched.Register(loggerSvc, scheduler.NoPreference); err != nil {
		logger.Fatal("failed to register logger service", zap.Error(err))
	}
	if err := sched.Register(parserSvc, scheduler.NoPreference); err != nil {
		logger.Fatal("failed to register parser service", zap.Error(err))
	}
	if err := sched.Register(ingressSvc, scheduler.NoPreference); err != nil {
		logger.Fatal("failed to register ingress service", zap.Error(err))
	}
	if err := sched.Register(rateLimitedSvc, scheduler.NoPreference); err != nil {
		logger.Fatal("failed to register rate-limited service", zap.Error(err))
	}
	if err := sched.Register(echoSvc, scheduler.NoPreference); err != nil {
		logger.Fatal("failed to register echo service", zap.Error(err))
	}

	sched.StartAll()
	logger.Info("scheduler started", zap.Int("worker_count", sched.WorkerCount()))

	recorder := metricsrecorder.New(postgres, sched, 10*time.Second, slogLogger)
	recorder.Start()

	sweepStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sweepStop:
				return
			case <-ticker.C:
				sched.ReapCompleted()
				exporter.Sync(sched.AllMetrics(), sched.WorkerCount())
			}
		}
	}()

	app := statusapi.New(sched, redisClient, slogLogger)
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("status api stopped", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down runtime host...")
	close(sweepStop)
	recorder.Stop()
	sched.StopAll()
	_ = app.ShutdownWithTimeout(5 * time.Second)
	logger.Info("runtime host shutdown complete")
}
