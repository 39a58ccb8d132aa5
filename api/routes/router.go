package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adhamfarouk/pillcart-backend/api/controllers"
	ordercontrollers "github.com/adhamfarouk/pillcart-backend/api/controllers/orders"
	webhookcontrollers "github.com/adhamfarouk/pillcart-backend/api/controllers/webhooks"
	"github.com/adhamfarouk/pillcart-backend/api/middleware"
	"github.com/adhamfarouk/pillcart-backend/internal/fulfillment"
	"github.com/adhamfarouk/pillcart-backend/internal/orders"
	"github.com/adhamfarouk/pillcart-backend/internal/payments"
	"github.com/adhamfarouk/pillcart-backend/pkg/config"
	"github.com/adhamfarouk/pillcart-backend/pkg/db"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
	"github.com/adhamfarouk/pillcart-backend/pkg/paygate"
	"github.com/adhamfarouk/pillcart-backend/pkg/redis"
	"github.com/adhamfarouk/pillcart-backend/pkg/shipblu"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	fulfillmentSvc fulfillment.Service,
	paygateClient *paygate.Client,
	shipbluClient *shipblu.Client,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Get("/payment", webhookcontrollers.PaymentWebhookLiveness())
		r.Post("/payment", webhookcontrollers.PaymentWebhook(paymentsSvc, paygateClient, logg))
		r.Post("/fulfillment", webhookcontrollers.FulfillmentWebhook(fulfillmentSvc, shipbluClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", ordercontrollers.Checkout(ordersSvc, logg))

		r.Route("/orders/{orderNumber}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(ordersSvc, logg))
			r.Put("/address", ordercontrollers.SetAddress(ordersSvc, logg))
			r.Post("/coupon", ordercontrollers.ApplyCoupon(ordersSvc, logg))
			r.Delete("/coupon", ordercontrollers.RemoveCoupon(ordersSvc, logg))
			r.Post("/invoice", ordercontrollers.CreateInvoice(ordersSvc, paymentsSvc, logg))
			r.Post("/ship", ordercontrollers.Ship(ordersSvc, fulfillmentSvc, logg))
		})
	})

	return r
}
