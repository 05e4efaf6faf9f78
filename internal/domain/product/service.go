// internal/domain/product/service.go
package product

import (
	"errors"
	"fmt"

	"github.com/your-org/medsupply-backend/internal/config"
	"gorm.io/gorm"
)

// ErrNotFound indicates the requested product does not exist
var ErrNotFound = errors.New("product not found")

// ErrInsufficientStock indicates a stock decrement would go negative
var ErrInsufficientStock = errors.New("insufficient supplier stock")

// Service handles catalog business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new product service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CreateProductRequest represents product creation data
type CreateProductRequest struct {
	SKU           string `json:"sku" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	Price         int64  `json:"price" binding:"required,gt=0"`
	StockQuantity int    `json:"stock_quantity" binding:"gte=0"`
}

// UpdateProductRequest represents product update data
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	IsActive    *bool   `json:"is_active"`
}

// CreateProduct adds a catalog item
func (s *Service) CreateProduct(req *CreateProductRequest) (*Product, error) {
	var existing Product
	if err := s.db.Where("sku = ?", req.SKU).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("product with SKU '%s' already exists", req.SKU)
	}

	p := &Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		IsActive:      true,
	}

	if err := s.db.Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return p, nil
}

// GetProduct retrieves a product by ID
func (s *Service) GetProduct(id uint) (*Product, error) {
	var p Product
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return &p, nil
}

// ListProducts retrieves active products
func (s *Service) ListProducts() ([]Product, error) {
	var products []Product
	if err := s.db.Where("is_active = ?", true).Order("name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}
	return products, nil
}

// UpdateProduct applies a partial product update
func (s *Service) UpdateProduct(id uint, req *UpdateProductRequest) (*Product, error) {
	p, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, fmt.Errorf("price must be positive")
		}
		updates["price"] = *req.Price
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(p).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}

	return p, nil
}

// AdjustStock applies an atomic supplier stock delta. Negative deltas are
// rejected when they would take stock below zero.
func (s *Service) AdjustStock(tx *gorm.DB, productID uint, delta int) error {
	if tx == nil {
		tx = s.db
	}

	query := tx.Model(&Product{}).Where("id = ?", productID)
	if delta < 0 {
		// Guard in the same statement so concurrent decrements cannot oversell
		query = query.Where("stock_quantity >= ?", -delta)
	}

	result := query.UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to adjust stock for product %d: %w", productID, result.Error)
	}
	if result.RowsAffected == 0 {
		if delta < 0 {
			return ErrInsufficientStock
		}
		return ErrNotFound
	}
	return nil
}
