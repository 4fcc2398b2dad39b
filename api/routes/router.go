package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazarly/backend/api/controllers"
	"github.com/bazarly/backend/api/middleware"
	"github.com/bazarly/backend/internal/catalog"
	ordersvc "github.com/bazarly/backend/internal/orders"
	"github.com/bazarly/backend/internal/pixel"
	"github.com/bazarly/backend/internal/store"
	"github.com/bazarly/backend/pkg/config"
	"github.com/bazarly/backend/pkg/logger"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	Store           *store.Store
	Catalog         *catalog.Service
	Orders          *ordersvc.Service
	Pipeline        *pixel.Pipeline
	ProviderFactory ordersvc.ProviderFactory
	PixelVerifier   controllers.PixelVerifierFactory
	Metrics         http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Post("/", controllers.CreateProduct(deps.Catalog, logg))
			r.Get("/{productId}", controllers.GetProduct(deps.Catalog, logg))
			r.Put("/{productId}", controllers.UpdateProduct(deps.Catalog, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(deps.Catalog, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(deps.Catalog, logg))
			r.Post("/", controllers.CreateCategory(deps.Catalog, logg))
			r.Delete("/{categoryId}", controllers.DeleteCategory(deps.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Post("/", controllers.PlaceOrder(deps.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
			r.Post("/{orderId}/dispatch", controllers.DispatchOrder(deps.Orders, logg))
			r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
			r.Patch("/{orderId}/payment", controllers.UpdateOrderPayment(deps.Orders, logg))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/couriers", controllers.GetCourierSettings(deps.Store, logg))
			r.Put("/couriers", controllers.PutCourierSettings(deps.Store, logg))
			r.Post("/couriers/{provider}/verify", controllers.VerifyCourier(deps.Store, deps.ProviderFactory, logg))

			r.Get("/pixel", controllers.GetPixelSettings(deps.Store, logg))
			r.Put("/pixel", controllers.PutPixelSettings(deps.Store, logg))
			r.Post("/pixel/verify", controllers.VerifyPixel(deps.Store, deps.PixelVerifier, deps.Pipeline, logg))
		})

		r.Get("/pixel/stats", controllers.PixelStats(deps.Pipeline, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Store, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Store, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Store, logg))
		})
	})

	return r
}
