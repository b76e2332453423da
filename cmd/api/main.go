package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/api/routes"
	"github.com/tavolo-app/tavolo-backend/internal/balance"
	"github.com/tavolo-app/tavolo-backend/internal/history"
	"github.com/tavolo-app/tavolo-backend/internal/paymentrequests"
	"github.com/tavolo-app/tavolo-backend/internal/subscriptions"
	"github.com/tavolo-app/tavolo-backend/pkg/auth/session"
	"github.com/tavolo-app/tavolo-backend/pkg/config"
	"github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
	"github.com/tavolo-app/tavolo-backend/pkg/migrate"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox"
	"github.com/tavolo-app/tavolo-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

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

	historyService, err := history.NewService(history.ServiceParams{
		Repo:            history.NewRepository(dbClient.DB()),
		Logger:          logg,
		DefaultPageSize: cfg.Billing.HistoryDefaultPageSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create history service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			subscriptionService,
			paymentService,
			balanceService,
			historyService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
