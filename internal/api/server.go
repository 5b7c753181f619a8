package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type ServerConfig struct {
	Orders   *OrderHandler
	Products *ProductHandler
	Auth     *AuthHandler

	JWTSecret      []byte
	RateLimit      float64
	RateLimitBurst int
}

// NewServer builds the echo instance with middleware and every route
// registered.
func NewServer(cfg ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	if cfg.RateLimit > 0 {
		limiterConfig := middleware.RateLimiterConfig{
			Skipper: middleware.DefaultSkipper,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(cfg.RateLimit),
					Burst:     cfg.RateLimitBurst,
					ExpiresIn: 3 * time.Minute,
				}),
			IdentifierExtractor: func(context echo.Context) (string, error) {
				return context.RealIP(), nil
			},
			ErrorHandler: func(context echo.Context, err error) error {
				return context.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			},
		}
		e.Use(middleware.RateLimiterWithConfig(limiterConfig))
	}

	g := e.Group("/api")

	g.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "storefront-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	g.POST("/orders", cfg.Orders.CreateOrder)
	g.GET("/products/:id", cfg.Products.GetProduct)
	g.GET("/products/:id/stock", cfg.Products.GetProductStock)
	g.POST("/admin/login", cfg.Auth.Login)

	adminOnly := AdminOnly(cfg.JWTSecret)
	g.GET("/orders", cfg.Orders.ListOrders, adminOnly)
	g.GET("/orders/:id", cfg.Orders.GetOrder, adminOnly)
	g.PUT("/orders/:id/status", cfg.Orders.UpdateOrderStatus, adminOnly)

	return e
}
