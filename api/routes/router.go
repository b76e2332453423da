package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tavolo-app/tavolo-backend/api/controllers"
	billingcontrollers "github.com/tavolo-app/tavolo-backend/api/controllers/billing"
	historycontrollers "github.com/tavolo-app/tavolo-backend/api/controllers/history"
	subscriptioncontrollers "github.com/tavolo-app/tavolo-backend/api/controllers/subscriptions"
	"github.com/tavolo-app/tavolo-backend/api/middleware"
	"github.com/tavolo-app/tavolo-backend/pkg/auth/session"
	"github.com/tavolo-app/tavolo-backend/pkg/config"
	"github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
	"github.com/tavolo-app/tavolo-backend/pkg/redis"
)

// PaymentRequestService joins the merchant and admin surfaces of the payment
// request workflow; the concrete service implements both.
type PaymentRequestService interface {
	billingcontrollers.PaymentRequestService
	billingcontrollers.AdminPaymentRequestService
}

// RedisClient is the slice of the Redis client the router wires into
// middleware and health checks.
type RedisClient interface {
	redis.Pinger
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient RedisClient,
	sessions session.AccessSessionChecker,
	subscriptionService subscriptioncontrollers.Service,
	paymentService PaymentRequestService,
	balanceService billingcontrollers.BalanceService,
	historyService historycontrollers.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	merchantPolicy := middleware.NewRateLimitPolicy(
		"merchant",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.MerchantLimit,
	)
	adminPolicy := middleware.NewRateLimitPolicy(
		"admin",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/merchant", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.MerchantContext(logg))
		r.Use(middleware.RateLimit(merchantPolicy, redisClient, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/", subscriptioncontrollers.MerchantSubscriptionStatus(subscriptionService, logg))
			r.Get("/lock-status", subscriptioncontrollers.MerchantLockStatus(subscriptionService, logg))
			r.Get("/switch-options", subscriptioncontrollers.MerchantSwitchOptions(subscriptionService, logg))
			r.Post("/switch", subscriptioncontrollers.MerchantSwitch(subscriptionService, logg))
		})

		r.Get("/history", historycontrollers.MerchantHistory(historyService, logg))

		r.Route("/payment-requests", func(r chi.Router) {
			r.Post("/", billingcontrollers.MerchantPaymentRequestCreate(paymentService, logg))
			r.Get("/", billingcontrollers.MerchantPaymentRequestList(paymentService, logg))
			r.Get("/active", billingcontrollers.MerchantPaymentRequestActive(paymentService, logg))
			r.Post("/{requestId}/confirm", billingcontrollers.MerchantPaymentRequestConfirm(paymentService, logg))
			r.Post("/{requestId}/cancel", billingcontrollers.MerchantPaymentRequestCancel(paymentService, logg))
		})

		r.Route("/balance", func(r chi.Router) {
			r.Get("/", billingcontrollers.MerchantBalance(balanceService, logg))
			r.Get("/transactions", billingcontrollers.MerchantBalanceTransactions(balanceService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.RateLimit(adminPolicy, redisClient, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/payment-requests", func(r chi.Router) {
			r.Get("/", billingcontrollers.AdminPaymentRequestList(paymentService, logg))
			r.Post("/{requestId}/verify", billingcontrollers.AdminPaymentRequestVerify(paymentService, logg))
			r.Post("/{requestId}/reject", billingcontrollers.AdminPaymentRequestReject(paymentService, logg))
		})

		r.Route("/merchants/{merchantId}", func(r chi.Router) {
			r.Post("/balance-adjustments", billingcontrollers.AdminBalanceAdjust(balanceService, logg))
			r.Get("/ledger", billingcontrollers.AdminMerchantLedger(balanceService, logg))
		})
	})

	return r
}
