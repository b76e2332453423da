package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/internal/balance"
	"github.com/tavolo-app/tavolo-backend/internal/cron"
	"github.com/tavolo-app/tavolo-backend/internal/paymentrequests"
	"github.com/tavolo-app/tavolo-backend/internal/subscriptions"
	"github.com/tavolo-app/tavolo-backend/pkg/config"
	"github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
	"github.com/tavolo-app/tavolo-backend/pkg/metrics"
	"github.com/tavolo-app/tavolo-backend/pkg/migrate"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox"
	"github.com/tavolo-app/tavolo-backend/pkg/redis"
)

const lockKeyFormat = "tv:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	currency, err := enums.ParseCurrency(cfg.Billing.DefaultCurrency)
	if err != nil {
		logg.Error(context.Background(), "invalid default currency", err)
		os.Exit(1)
	}
	minBalance, err := decimal.NewFromString(cfg.Billing.MinDepositBalance)
	if err != nil {
		logg.Error(context.Background(), "invalid minimum deposit balance", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	balanceService, err := balance.NewService(balance.ServiceParams{
		DB:       dbClient,
		Repo:     balance.NewRepository(dbClient.DB()),
		Outbox:   outboxService,
		Logger:   logg,
		Currency: currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create balance service", err)
		os.Exit(1)
	}

	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		DB:         dbClient,
		Repo:       subscriptionRepo,
		Balances:   balanceService,
		Outbox:     outboxService,
		Logger:     logg,
		TrialDays:  cfg.Billing.TrialDays,
		MinBalance: minBalance,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	paymentService, err := paymentrequests.NewService(paymentrequests.ServiceParams{
		DB:            dbClient,
		Repo:          paymentrequests.NewRepository(dbClient.DB()),
		Balances:      balanceService,
		Subscriptions: subscriptionService,
		Outbox:        outboxService,
		Cooldowns:     redisClient,
		Logger:        logg,
		Bank: paymentrequests.BankDetails{
			Name:          cfg.Billing.BankName,
			AccountNumber: cfg.Billing.BankAccount,
			AccountName:   cfg.Billing.BankAccountName,
		},
		TTL:      cfg.Billing.PaymentRequestTTL,
		Cooldown: cfg.Billing.CreateCooldown,
		Currency: currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment request service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewPaymentRequestExpiryJob(cron.PaymentRequestExpiryJobParams{
		Logger:   logg,
		Requests: paymentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment request expiry job", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
		Logger:        logg,
		Repository:    subscriptionRepo,
		Subscriptions: subscriptionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription reconcile job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, reconcileJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.ExpirySweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
