// internal/domain/inventory/entity.go
package inventory

import (
	"time"
)

// InventoryEntry tracks client-held stock of one product and its reorder policy.
// One row per (client, product); entries are edited or disabled, never
// auto-deleted.
type InventoryEntry struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ClientID  uint `gorm:"not null;uniqueIndex:idx_client_product" json:"client_id"`
	ProductID uint `gorm:"not null;uniqueIndex:idx_client_product" json:"product_id"`

	CurrentStock int `gorm:"not null;default:0" json:"current_stock"` // units on the client's shelf
	DailyUsage   int `gorm:"not null;default:0" json:"daily_usage"`   // units consumed per day
	ReorderPoint int `gorm:"not null;default:0" json:"reorder_point"` // replenish at or below this level
	ReorderQty   int `gorm:"not null;default:0" json:"reorder_qty"`   // units to order when triggered

	AutoOrderEnabled bool       `gorm:"default:false" json:"auto_order_enabled"`
	LastDecrementAt  *time.Time `json:"last_decrement_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name for InventoryEntry
func (InventoryEntry) TableName() string {
	return "inventory_entries"
}

// NeedsReorder reports whether the entry is at or below its reorder point
func (e *InventoryEntry) NeedsReorder() bool {
	return e.AutoOrderEnabled && e.ReorderQty > 0 && e.CurrentStock <= e.ReorderPoint
}
