// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/interfaces/http/handlers"
	"github.com/your-org/medsupply-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires all API routes
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	SetupProductRoutes(rg, db, redisClient, cfg)
	SetupInventoryRoutes(rg, db, redisClient, cfg)
	SetupOrderRoutes(rg, db, redisClient, cfg)
	SetupReplenishmentRoutes(rg, db, redisClient, cfg)
	SetupAdminRoutes(rg, db, redisClient, cfg)
}

// SetupProductRoutes sets up catalog routes
func SetupProductRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	productHandler := handlers.NewProductHandler(db, cfg)

	products := rg.Group("/products")
	products.Use(middleware.AuthMiddleware(cfg))
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
	}
}

// SetupInventoryRoutes sets up replenishment ledger routes
func SetupInventoryRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	inventoryHandler := handlers.NewInventoryHandler(db, cfg)

	inventoryGroup := rg.Group("/inventory")
	inventoryGroup.Use(middleware.AuthMiddleware(cfg))
	{
		inventoryGroup.GET("/entries", inventoryHandler.GetEntries)
		inventoryGroup.GET("/entries/:productId", inventoryHandler.GetEntry)
		inventoryGroup.PUT("/entries", inventoryHandler.UpsertEntry)
	}
}

// SetupOrderRoutes sets up order routes
func SetupOrderRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	orderHandler := handlers.NewOrderHandler(db, cfg)

	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.GET("", orderHandler.GetOrders)
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.PUT("/:id/cancel", orderHandler.CancelOrder)
	}
}

// SetupReplenishmentRoutes sets up the guarded auto-order trigger
func SetupReplenishmentRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	replenishmentHandler := handlers.NewReplenishmentHandler(db, redisClient, cfg)

	replenish := rg.Group("/replenishment")
	replenish.Use(middleware.AuthMiddleware(cfg))
	{
		replenish.POST("/trigger", replenishmentHandler.TriggerAutoOrder)
	}
}

// SetupAdminRoutes sets up admin routes
func SetupAdminRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	productHandler := handlers.NewProductHandler(db, cfg)
	clientHandler := handlers.NewClientHandler(db, cfg)
	orderHandler := handlers.NewOrderHandler(db, cfg)
	replenishmentHandler := handlers.NewReplenishmentHandler(db, redisClient, cfg)

	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.Use(middleware.AdminMiddleware())
	{
		// Catalog management
		products := admin.Group("/products")
		{
			products.POST("", productHandler.AdminCreateProduct)
			products.PUT("/:id", productHandler.AdminUpdateProduct)
			products.PUT("/:id/stock", productHandler.AdminAdjustStock)
		}

		// Client directory management
		clients := admin.Group("/clients")
		{
			clients.GET("", clientHandler.ListClients)
			clients.GET("/:id", clientHandler.GetClient)
			clients.POST("", clientHandler.CreateClient)
			clients.PUT("/:id/payment-customer", clientHandler.UpdatePaymentCustomer)
		}

		// Order management
		orders := admin.Group("/orders")
		{
			orders.GET("", orderHandler.AdminGetOrders)
			orders.PUT("/:id/status", orderHandler.AdminUpdateOrderStatus)
			orders.PUT("/:id/release", replenishmentHandler.ManualRelease)
		}

		// Replenishment engine entry points
		replenish := admin.Group("/replenishment")
		{
			replenish.POST("/run", replenishmentHandler.RunDailyJob)
			replenish.POST("/release-expired", replenishmentHandler.ReleaseExpired)
		}
	}
}
