package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danmarrec/storelane-backend/api/controllers"
	webhookcontrollers "github.com/danmarrec/storelane-backend/api/controllers/webhooks"
	"github.com/danmarrec/storelane-backend/api/middleware"
	"github.com/danmarrec/storelane-backend/internal/checkout"
	"github.com/danmarrec/storelane-backend/internal/orders"
	"github.com/danmarrec/storelane-backend/internal/transactions"
	stripewebhook "github.com/danmarrec/storelane-backend/internal/webhooks/stripe"
	"github.com/danmarrec/storelane-backend/pkg/config"
	"github.com/danmarrec/storelane-backend/pkg/db"
	"github.com/danmarrec/storelane-backend/pkg/logger"
	"github.com/danmarrec/storelane-backend/pkg/redis"
	"github.com/danmarrec/storelane-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersService orders.Service,
	checkoutService checkout.Service,
	transactionsRepo transactions.Repository,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Signature-verified, no caller identity required.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.Stripe(stripeClient, stripeWebhookGuard, stripeWebhookService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.UserContext(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersService, logg))
			r.Get("/", controllers.OrderList(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(ordersService, logg))
			r.Post("/{orderId}/checkout", controllers.CheckoutStart(checkoutService, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.TransactionList(transactionsRepo, logg))
			r.Get("/{transactionId}", controllers.TransactionDetail(transactionsRepo, logg))
		})
	})

	return r
}
