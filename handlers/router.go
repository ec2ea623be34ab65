package handlers

import (
	"repuestos-backoffice/metrics"
	"repuestos-backoffice/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Log            *zap.Logger
}

// NewRouter wires the middleware chain and every route.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Log))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	router.GET("/health", h.Health)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)
	router.POST("/admin/create-user", h.AdminCreateUser)

	api := router.Group("")
	api.Use(h.auth.Middleware())
	{
		api.GET("/auth/me", h.Me)

		api.GET("/products/search", h.SearchProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/clients", h.ListClients)
		api.GET("/clients/:id", h.GetClient)
		api.GET("/clients/:id/purchases", h.ClientPurchases)
		api.GET("/clients/:id/purchases/stream", h.StreamClientPurchases)
		api.GET("/employees", h.ListEmployees)
		api.GET("/employees/:id", h.GetEmployee)
	}

	quotes := api.Group("/quotations")
	{
		quotes.POST("", h.CreateQuotation)
		quotes.GET("/:id", h.GetQuotation)
		quotes.GET("/:id/stream", h.StreamQuotation)

		quotes.PUT("/:id/number", h.SetNumber)
		quotes.PUT("/:id/client", h.SetClient)
		quotes.PUT("/:id/employee", h.SetEmployee)
		quotes.PUT("/:id/plate", h.SetPlate)
		quotes.PUT("/:id/payment-method", h.SetPaymentMethod)
		quotes.PUT("/:id/notes", h.SetNotes)

		quotes.POST("/:id/items", h.AddItem)
		quotes.PUT("/:id/items/:itemId", h.UpdateItem)
		quotes.DELETE("/:id/items/:itemId", h.RemoveItem)

		quotes.POST("/:id/confirm", h.Confirm)
		quotes.POST("/:id/cancel", h.Cancel)
	}

	return router
}
