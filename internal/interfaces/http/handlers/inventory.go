// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// InventoryHandler handles replenishment ledger endpoints
type InventoryHandler struct {
	inventoryService *inventory.Service
	config           *config.Config
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(db *gorm.DB, cfg *config.Config) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventory.NewService(db, cfg),
		config:           cfg,
	}
}

// UpsertEntry handles PUT /inventory/entries
func (h *InventoryHandler) UpsertEntry(c *gin.Context) {
	clientID, ok := middleware.GetClientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return
	}

	var req inventory.UpsertEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	entry, err := h.inventoryService.UpsertEntry(clientID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Inventory entry saved successfully",
		"data":    entry,
	})
}

// GetEntries handles GET /inventory/entries
func (h *InventoryHandler) GetEntries(c *gin.Context) {
	clientID, ok := middleware.GetClientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return
	}

	entries, err := h.inventoryService.GetClientEntries(clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve inventory entries",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entries,
	})
}

// GetEntry handles GET /inventory/entries/:productId
func (h *InventoryHandler) GetEntry(c *gin.Context) {
	clientID, ok := middleware.GetClientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return
	}

	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return
	}

	entry, err := h.inventoryService.GetEntry(clientID, uint(productID))
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Inventory entry not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve inventory entry",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entry,
	})
}
