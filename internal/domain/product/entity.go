// internal/domain/product/entity.go
package product

import (
	"time"

	"gorm.io/gorm"
)

// Product represents a supplier catalog item
type Product struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SKU         string `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name        string `gorm:"not null;size:255" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Price       int64  `gorm:"not null" json:"price"` // Unit price in cents

	// StockQuantity is the live supplier stock. It is decremented only when a
	// payment is confirmed, never at order creation.
	StockQuantity int `gorm:"default:0" json:"stock_quantity"`

	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name for Product
func (Product) TableName() string {
	return "products"
}

// IsOrderable reports whether the product can appear on a new order line
func (p *Product) IsOrderable() bool {
	return p.IsActive && p.StockQuantity > 0
}
