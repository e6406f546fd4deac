package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nilewear/api/internal/cache"
	"github.com/nilewear/api/internal/config"
	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/enum"
	"github.com/nilewear/api/internal/handler"
	mw "github.com/nilewear/api/internal/middleware"
	"github.com/nilewear/api/internal/service"
	"github.com/nilewear/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, cartCache cache.CartCache) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // storefront dev server
			"https://nilewear.com",
			"https://admin.nilewear.com",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Public catalog and shipping table
	productHandler := handler.NewProductHandler(queries)
	productHandler.RegisterPublicRoutes(r)
	handler.NewShippingHandler().RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services shared across route groups
	notificationService := service.NewNotificationService(queries, hub)
	cartService := service.NewCartService(queries, cartCache)
	checkoutService := service.NewCheckoutService(pool, queries, func(db database.DBTX) service.CheckoutStore {
		return database.New(db)
	})
	orderService := service.NewOrderService(pool, queries, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, notificationService, cartCache)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		handler.NewCartHandler(cartService).RegisterRoutes(r)
		handler.NewCheckoutHandler(checkoutService).RegisterRoutes(r)
		handler.NewNotificationHandler(notificationService).RegisterRoutes(r)

		orderHandler := handler.NewOrderHandler(orderService)
		orderHandler.RegisterRoutes(r)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			productHandler.RegisterAdminRoutes(r)
			orderHandler.RegisterAdminRoutes(r)
			handler.NewUserHandler(queries).RegisterAdminRoutes(r)
		})
	})

	return r
}
