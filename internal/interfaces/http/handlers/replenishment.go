// internal/interfaces/http/handlers/replenishment.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/domain/payment"
	"github.com/your-org/medsupply-backend/internal/domain/product"
	"github.com/your-org/medsupply-backend/internal/domain/replenishment"
	"github.com/your-org/medsupply-backend/internal/interfaces/http/middleware"
	"github.com/your-org/medsupply-backend/internal/pkg/email"
	"github.com/your-org/medsupply-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

// ReplenishmentHandler exposes the guarded auto-order trigger and the
// admin entry points of the replenishment engine.
type ReplenishmentHandler struct {
	config       *config.Config
	orderService *order.Service
	trigger      *replenishment.Trigger
	scheduler    *replenishment.Scheduler
	release      *replenishment.ReleaseWorker
}

// NewReplenishmentHandler wires the replenishment engine for HTTP use
func NewReplenishmentHandler(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *ReplenishmentHandler {
	log := logger.New(cfg)

	clientService := client.NewService(db, cfg)
	productService := product.NewService(db, cfg)
	inventoryService := inventory.NewService(db, cfg)
	orderService := order.NewService(db, cfg, productService, inventoryService)

	notifier := replenishment.NewEmailNotifier(cfg, email.NewEmailService(cfg))
	gateway := payment.NewStripeGateway(cfg)

	assembler := replenishment.NewAssembler(log, inventoryService, productService, orderService)
	settler := replenishment.NewSettler(cfg, log, gateway, orderService, notifier)
	engine := replenishment.NewEngine(cfg, log, clientService, orderService, assembler, settler, notifier)
	guard := replenishment.NewGuard(cfg, log, redisClient)

	var locker *redislock.Client
	if redisClient != nil {
		locker = redislock.New(redisClient)
	}

	return &ReplenishmentHandler{
		config:       cfg,
		orderService: orderService,
		trigger:      replenishment.NewTrigger(cfg, log, guard, engine),
		scheduler:    replenishment.NewScheduler(cfg, log, db, inventoryService, engine, locker),
		release:      replenishment.NewReleaseWorker(cfg, log, orderService, clientService, notifier, locker),
	}
}

// TriggerRequest represents an auto-order trigger payload
type TriggerRequest struct {
	ProductIDs []uint `json:"product_ids" binding:"required,min=1"`
}

// TriggerAutoOrder handles POST /replenishment/trigger. Duplicate or
// concurrent triggers for the same client and product set are rejected
// synchronously with no side effects.
func (h *ReplenishmentHandler) TriggerAutoOrder(c *gin.Context) {
	clientID, ok := middleware.GetClientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return
	}

	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.trigger.TriggerAutoOrder(c.Request.Context(), clientID, req.ProductIDs)
	if err != nil {
		switch {
		case errors.Is(err, replenishment.ErrLockHeld):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "Auto-order processing already in progress, retry shortly",
			})
		case errors.Is(err, replenishment.ErrDuplicateRequest):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "Duplicate request, an identical trigger was just processed",
			})
		case errors.Is(err, client.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "Client not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Auto-order processing failed",
			})
		}
		return
	}

	switch {
	case result.Rejection != nil:
		c.JSON(http.StatusOK, gin.H{
			"success":          false,
			"rejection_reason": result.Rejection.Reason,
			"message":          result.Rejection.Message,
		})
	case result.NothingToOrder:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "No ledger entries need replenishment",
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    result.Order,
		})
	}
}

// RunDailyJob handles POST /admin/replenishment/run. Idempotent per day:
// re-invoking after the day's run returns without side effects.
func (h *ReplenishmentHandler) RunDailyJob(c *gin.Context) {
	if err := h.scheduler.RunDaily(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Daily replenishment run failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Daily replenishment run completed",
	})
}

// ReleaseExpired handles POST /admin/replenishment/release-expired
func (h *ReplenishmentHandler) ReleaseExpired(c *gin.Context) {
	released, err := h.release.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Release sweep failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Release sweep completed",
		"released": released,
	})
}

// ManualRelease handles PUT /admin/orders/:id/release, the admin override
// for a stuck unpaid order. Fails if the order is already paid.
func (h *ReplenishmentHandler) ManualRelease(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	ord, err := h.orderService.ManuallyReleaseOrder(uint(id))
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Order not found",
			})
		case errors.Is(err, order.ErrAlreadyPaid):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Order is already paid and cannot be released",
			})
		case errors.Is(err, order.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to release order",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order released successfully",
		"data":    ord,
	})
}
