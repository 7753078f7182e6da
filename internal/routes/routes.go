package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	gatherer prometheus.Gatherer,
	healthHandler *handlers.HealthHandler,
	planHandler *handlers.PlanHandler,
	paymentHandler *handlers.PaymentHandler,
	entitlementHandler *handlers.EntitlementHandler,
	jobHandler *handlers.JobHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Plan catalog (public)
	api.Get("/plans", planHandler.List)
	api.Get("/plans/:id", planHandler.Get)

	// Checkout: stricter limit, payment creation hits the gateway
	checkoutLimit := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})

	// Protected routes (JWT required) - apply middleware to individual routes
	// so public routes above stay untouched
	jwt := middleware.JWTProtected(cfg)
	api.Post("/payments", jwt, checkoutLimit, paymentHandler.Create)
	api.Post("/payments/:id/confirm", jwt, checkoutLimit, paymentHandler.Confirm)
	api.Get("/payments", jwt, paymentHandler.ListMine)
	api.Get("/payments/:id", jwt, paymentHandler.GetMine)
	api.Get("/entitlement", jwt, entitlementHandler.Get)
	api.Post("/entitlement/cancel", jwt, entitlementHandler.Cancel)

	// Admin dashboard (admin token or JWT + admin)
	admin := api.Group("/admin", middleware.AdminTokenOrJWT(cfg), middleware.AdminRequired(db, cfg))
	admin.Get("/plans", planHandler.ListAll)
	admin.Post("/plans", planHandler.Create)
	admin.Put("/plans/:id", planHandler.Update)
	admin.Delete("/plans/:id", planHandler.Delete)

	admin.Get("/payments", paymentHandler.AdminList)
	admin.Get("/payments/:id", paymentHandler.AdminGet)
	admin.Post("/payments/:id/action", paymentHandler.AdminAction)

	admin.Get("/jobs", jobHandler.List)
	admin.Post("/jobs/:name/run", jobHandler.Run)
}
