package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmarrec/storelane-backend/internal/inventory"
	"github.com/danmarrec/storelane-backend/internal/reservations"
	"github.com/danmarrec/storelane-backend/internal/sweeper"
	"github.com/danmarrec/storelane-backend/internal/transactions"
	"github.com/danmarrec/storelane-backend/pkg/config"
	"github.com/danmarrec/storelane-backend/pkg/db"
	"github.com/danmarrec/storelane-backend/pkg/logger"
	"github.com/danmarrec/storelane-backend/pkg/metrics"
	"github.com/danmarrec/storelane-backend/pkg/migrate"
	"github.com/danmarrec/storelane-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewSweeperMetrics(prometheus.DefaultRegisterer)

	lock, err := sweeper.NewRedisLock(redisClient, redisClient.LockKey("sweeper"), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper lock", err)
		os.Exit(1)
	}

	expiryJob, err := sweeper.NewReservationExpiryJob(sweeper.ReservationExpiryJobParams{
		ReservationsRepo:  reservations.NewRepository(dbClient.DB()),
		TransactionsRepo:  transactions.NewRepository(dbClient.DB()),
		Stock:             inventory.NewLedger(),
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation expiry job", err)
		os.Exit(1)
	}

	service, err := sweeper.NewService(sweeper.ServiceParams{
		Logger:   logg,
		Registry: sweeper.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting sweeper")

	metricsServer := &http.Server{
		Addr:    ":" + cfg.Sweeper.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer metricsServer.Close()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper shutting down gracefully")
}
