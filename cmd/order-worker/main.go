package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/internal/balance"
	"github.com/tavolo-app/tavolo-backend/internal/orderfees"
	"github.com/tavolo-app/tavolo-backend/internal/subscriptions"
	"github.com/tavolo-app/tavolo-backend/pkg/config"
	"github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
	"github.com/tavolo-app/tavolo-backend/pkg/migrate"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox"
	"github.com/tavolo-app/tavolo-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "order-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "order-worker"

	logg = logger.New(logger.Options{
		ServiceName: "order-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
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

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

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

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		DB:         dbClient,
		Repo:       subscriptions.NewRepository(dbClient.DB()),
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

	feeService, err := orderfees.NewService(orderfees.ServiceParams{
		Balances:      balanceService,
		Subscriptions: subscriptionService,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order fee service", err)
		os.Exit(1)
	}

	consumer, err := orderfees.NewConsumer(feeService, pubsubClient.OrdersSubscription(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting order worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "order consumer stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "order worker shutting down gracefully")
}
