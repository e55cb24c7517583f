package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/lendcart/api/controllers"
	cartcontrollers "github.com/angelmondragon/lendcart/api/controllers/cart"
	"github.com/angelmondragon/lendcart/api/middleware"
	checkoutsvc "github.com/angelmondragon/lendcart/internal/checkout"
	"github.com/angelmondragon/lendcart/pkg/config"
	"github.com/angelmondragon/lendcart/pkg/logger"
	pkgredis "github.com/angelmondragon/lendcart/pkg/redis"
)

// NewRouter wires the cart API. idempotency and gatherer may be nil.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store cartcontrollers.Store,
	checkoutService checkoutsvc.Service,
	idempotency pkgredis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	checks ...controllers.ReadinessCheck,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})

	if cfg.Metrics.Enabled && gatherer != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	idem := middleware.Idempotency(idempotency, logg)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", cartcontrollers.CartFetch(store, logg))
		r.Delete("/", cartcontrollers.CartClear(store, logg))
		r.Get("/count", cartcontrollers.CartCount(store, logg))
		r.With(idem).Post("/checkout", cartcontrollers.CartCheckout(checkoutService, logg))

		r.With(idem).Post("/items", cartcontrollers.CartItemAdd(store, logg))
		r.Get("/items/{cartItemId}", cartcontrollers.CartItemFetch(store, logg))
		r.Delete("/items/{cartItemId}", cartcontrollers.CartItemRemove(store, logg))
		r.Patch("/items/{cartItemId}/quantity", cartcontrollers.CartItemUpdateQuantity(store, logg))
		r.Patch("/items/{cartItemId}/message", cartcontrollers.CartItemUpdateMessage(store, logg))
		r.Patch("/items/{cartItemId}/rental-period", cartcontrollers.CartItemUpdateRentalPeriod(store, logg))
	})

	return r
}
