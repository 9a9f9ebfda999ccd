package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderdesk-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/orders"
	stockcontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/stock"
	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/stock"
	"github.com/angelmondragon/orderdesk-backend/pkg/auth"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Tokens      *auth.Verifier
	Directory   authz.Directory
	Orders      orders.Service
	Stock       stock.Service
	// Gatherer backs /metrics; nil falls back to the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Tokens, deps.Directory, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/queue", ordercontrollers.Queue(deps.Orders, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
				r.Delete("/", ordercontrollers.Delete(deps.Orders, logg))
				r.Post("/items", ordercontrollers.AddItem(deps.Orders, logg))
				r.Patch("/items/{itemId}", ordercontrollers.UpdateItem(deps.Orders, logg))
				r.Delete("/items/{itemId}", ordercontrollers.RemoveItem(deps.Orders, logg))
				r.Post("/items/{itemId}/complete", ordercontrollers.CompleteItem(deps.Orders, logg))
				r.Post("/complete", ordercontrollers.Complete(deps.Orders, logg))
				r.Post("/assign", ordercontrollers.Assign(deps.Orders, logg))
				r.Post("/unassign", ordercontrollers.Unassign(deps.Orders, logg))
				r.Post("/cancel", ordercontrollers.Cancel(deps.Orders, logg))
			})
		})
		r.Post("/order-items/bulk-delete", ordercontrollers.BulkDeleteItems(deps.Orders, logg))

		r.Route("/stock", func(r chi.Router) {
			r.Get("/items", stockcontrollers.ListItems(deps.Stock, logg))
			r.Post("/items", stockcontrollers.CreateItem(deps.Stock, logg))
			r.Get("/items/{itemId}", stockcontrollers.GetItem(deps.Stock, logg))
			r.Patch("/items/{itemId}", stockcontrollers.UpdateItem(deps.Stock, logg))
			r.Delete("/items/{itemId}", stockcontrollers.DeleteItem(deps.Stock, logg))
			r.Post("/items/{itemId}/quantity", stockcontrollers.AdjustQuantity(deps.Stock, logg))
			r.Get("/categories", stockcontrollers.ListCategories(deps.Stock, logg))
			r.Post("/categories", stockcontrollers.CreateCategory(deps.Stock, logg))
		})
	})

	return r
}
