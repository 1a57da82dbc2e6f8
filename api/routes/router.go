package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/practice-code/checkout-reconciler/api/controllers"
	webhookcontrollers "github.com/practice-code/checkout-reconciler/api/controllers/webhooks"
	"github.com/practice-code/checkout-reconciler/api/middleware"
	"github.com/practice-code/checkout-reconciler/internal/orders"
	"github.com/practice-code/checkout-reconciler/internal/vault"
	"github.com/practice-code/checkout-reconciler/internal/webhooks"
	"github.com/practice-code/checkout-reconciler/pkg/config"
	"github.com/practice-code/checkout-reconciler/pkg/db"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
	"github.com/practice-code/checkout-reconciler/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	webhookService *webhooks.Service,
	orderService orders.Service,
	vaultService *vault.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.ReadinessDeps(dbP, redisClient)))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(webhookService, cfg.Gateway.SigningSecret, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/{orderID}/sync", controllers.OrderSync(webhookService, orderService, logg))
		r.Post("/{orderID}/credit-memos", controllers.OrderCreditMemo(orderService, logg))
	})

	r.Route("/api/v1/customers", func(r chi.Router) {
		r.Get("/{customerID}/instruments", controllers.CustomerInstruments(vaultService, logg))
		r.Delete("/{customerID}/instruments/{sourceID}", controllers.RemoveCustomerInstrument(vaultService, logg))
	})

	return r
}
