package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storepos-backend/api/controllers"
	"github.com/angelmondragon/storepos-backend/api/middleware"
	"github.com/angelmondragon/storepos-backend/internal/auth"
	"github.com/angelmondragon/storepos-backend/internal/customers"
	"github.com/angelmondragon/storepos-backend/internal/ledger"
	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/internal/sales"
	"github.com/angelmondragon/storepos-backend/internal/users"
	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/redis"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth      auth.Service
	Products  product.Service
	Ledger    ledger.Service
	Sales     sales.Service
	Customers customers.Service
	Users     users.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// A nil *redis.Client must not reach the middlewares as a non-nil interface.
	var (
		readyDeps        = map[string]controllers.Pinger{"db": dbP}
		idempotencyStore redis.IdempotencyStore
		revocations      middleware.StaffRevocationChecker
		rateStore        *redis.Client
	)
	if redisClient != nil {
		readyDeps["redis"] = redisClient
		idempotencyStore = redisClient
		revocations = redisClient
		rateStore = redisClient
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		if rateStore != nil {
			r.Use(middleware.AuthRateLimit(loginPolicy, rateStore, logg))
		}
		r.Post("/login", controllers.AuthLogin(svc.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, revocations, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		stockKeepers := middleware.RequireRole(logg, enums.UserRoleManager, enums.UserRoleInventory)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(svc.Products, logg))
			r.Get("/low-stock", controllers.ListLowStockProducts(svc.Products, logg))
			r.Get("/barcode/{barcode}", controllers.GetProductByBarcode(svc.Products, logg))
			r.Get("/{productId}", controllers.GetProduct(svc.Products, logg))
			r.Get("/{productId}/history", controllers.ProductStockHistory(svc.Ledger, logg))
			r.With(stockKeepers).Post("/", controllers.CreateProduct(svc.Products, logg))
			r.With(stockKeepers).Patch("/{productId}", controllers.UpdateProduct(svc.Products, logg))
			r.With(stockKeepers).Delete("/{productId}", controllers.DeleteProduct(svc.Products, logg))
			r.With(stockKeepers).Post("/{productId}/stock-adjustments", controllers.AdjustProductStock(svc.Products, logg))
		})

		r.Get("/inventory/transactions", controllers.RecentInventoryTransactions(svc.Ledger, logg))

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", controllers.BookSale(svc.Sales, logg))
			r.Get("/", controllers.ListSales(svc.Sales, logg))
			r.Get("/invoice/{invoiceNumber}", controllers.GetSaleByInvoice(svc.Sales, logg))
			r.Get("/{saleId}", controllers.GetSale(svc.Sales, logg))
			r.Patch("/{saleId}/payment-status", controllers.UpdateSalePaymentStatus(svc.Sales, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.SearchCustomers(svc.Customers, logg))
			r.Post("/", controllers.CreateCustomer(svc.Customers, logg))
			r.Get("/{customerId}", controllers.GetCustomer(svc.Customers, logg))
			r.Patch("/{customerId}", controllers.UpdateCustomer(svc.Customers, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.CurrentUser(svc.Users, logg))
			r.Post("/me/password", controllers.ChangeOwnPassword(svc.Users, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg))
				r.Get("/", controllers.ListUsers(svc.Users, logg))
				r.Post("/", controllers.CreateUser(svc.Users, logg))
				r.Patch("/{userId}", controllers.UpdateUser(svc.Users, logg))
				r.Patch("/{userId}/active", controllers.SetUserActive(svc.Users, logg))
			})
		})
	})

	return r
}
