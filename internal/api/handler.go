package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-service/config"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	carts    *service.CartService
	orders   *service.OrderService
	payments *service.PaymentService
	users    *service.UserService
	catalog  *store.Store
	sessions *redisclient.Client
	cfg      *config.Config

	secureCookies bool
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	carts *service.CartService,
	orders *service.OrderService,
	payments *service.PaymentService,
	users *service.UserService,
	catalog *store.Store,
	sessions *redisclient.Client,
	cfg *config.Config,
) *Handler {
	return &Handler{
		carts:         carts,
		orders:        orders,
		payments:      payments,
		users:         users,
		catalog:       catalog,
		sessions:      sessions,
		cfg:           cfg,
		secureCookies: cfg.Server.Env == "production",
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.sessionCartMiddleware())
	v1.Use(h.authMiddleware())
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/latest", h.latestProducts)
		v1.GET("/products/:slug", h.getProduct)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productId", h.setCartItemQuantity)
		v1.POST("/cart/items/:productId/increment", h.incrementCartItem)
		v1.POST("/cart/items/:productId/decrement", h.decrementCartItem)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.POST("/auth/signup", h.signUp)
		v1.POST("/auth/signin", h.signIn)
		v1.POST("/auth/signout", h.signOut)

		authed := v1.Group("")
		authed.Use(h.requireAuth())
		{
			authed.GET("/me", h.getProfile)
			authed.PUT("/user/address", h.updateAddress)
			authed.PUT("/user/payment-method", h.updatePaymentMethod)

			authed.POST("/orders", h.placeOrder)
			authed.GET("/orders", h.listMyOrders)
			authed.GET("/orders/:id", h.getOrder)

			authed.POST("/orders/:id/paypal", h.createPayPalOrder)
			authed.POST("/orders/:id/paypal/capture", h.capturePayPalOrder)

			admin := authed.Group("/admin")
			admin.Use(h.requireAdmin())
			{
				admin.GET("/orders", h.adminListOrders)
				admin.GET("/products", h.adminListProducts)
				admin.POST("/orders/:id/mark-paid", h.adminMarkPaid)
				admin.POST("/orders/:id/deliver", h.adminMarkDelivered)
				admin.GET("/summary", h.adminSalesSummary)
			}
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// sessionTTL is the shared lifetime of session and session-cart cookies,
// in seconds.
func (h *Handler) sessionTTL() int {
	return h.cfg.Session.TTLDays * 24 * 60 * 60
}
