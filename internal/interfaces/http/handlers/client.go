// internal/interfaces/http/handlers/client.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"gorm.io/gorm"
)

// ClientHandler handles client directory endpoints
type ClientHandler struct {
	clientService *client.Service
	config        *config.Config
}

// NewClientHandler creates a new client handler
func NewClientHandler(db *gorm.DB, cfg *config.Config) *ClientHandler {
	return &ClientHandler{
		clientService: client.NewService(db, cfg),
		config:        cfg,
	}
}

// CreateClient handles POST /admin/clients
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req client.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	created, err := h.clientService.CreateClient(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Client created successfully",
		"data":    created,
	})
}

// GetClient handles GET /admin/clients/:id
func (h *ClientHandler) GetClient(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid client ID",
		})
		return
	}

	found, err := h.clientService.GetClient(uint(id))
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Client not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve client",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": found,
	})
}

// ListClients handles GET /admin/clients
func (h *ClientHandler) ListClients(c *gin.Context) {
	clients, err := h.clientService.ListClients()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve clients",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": clients,
	})
}

// UpdatePaymentCustomerRequest represents the payment profile link payload
type UpdatePaymentCustomerRequest struct {
	PaymentCustomerID string `json:"payment_customer_id" binding:"required"`
}

// UpdatePaymentCustomer handles PUT /admin/clients/:id/payment-customer
func (h *ClientHandler) UpdatePaymentCustomer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid client ID",
		})
		return
	}

	var req UpdatePaymentCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if err := h.clientService.UpdatePaymentCustomer(uint(id), req.PaymentCustomerID); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Client not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update payment customer",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment customer updated successfully",
	})
}
