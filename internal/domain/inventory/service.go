// internal/domain/inventory/service.go
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/your-org/medsupply-backend/internal/config"
	"gorm.io/gorm"
)

// ErrNotFound indicates the requested ledger entry does not exist
var ErrNotFound = errors.New("inventory entry not found")

// Service handles the replenishment ledger
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new inventory service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// UpsertEntryRequest represents a client edit to one ledger entry
type UpsertEntryRequest struct {
	ProductID        uint `json:"product_id" binding:"required"`
	CurrentStock     int  `json:"current_stock" binding:"gte=0"`
	DailyUsage       int  `json:"daily_usage" binding:"gte=0"`
	ReorderPoint     int  `json:"reorder_point" binding:"gte=0"`
	ReorderQty       int  `json:"reorder_qty" binding:"gte=0"`
	AutoOrderEnabled bool `json:"auto_order_enabled"`
}

// UpsertEntry creates or updates the (client, product) ledger entry
func (s *Service) UpsertEntry(clientID uint, req *UpsertEntryRequest) (*InventoryEntry, error) {
	var entry InventoryEntry
	err := s.db.Where("client_id = ? AND product_id = ?", clientID, req.ProductID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = InventoryEntry{
			ClientID:         clientID,
			ProductID:        req.ProductID,
			CurrentStock:     req.CurrentStock,
			DailyUsage:       req.DailyUsage,
			ReorderPoint:     req.ReorderPoint,
			ReorderQty:       req.ReorderQty,
			AutoOrderEnabled: req.AutoOrderEnabled,
		}
		if err := s.db.Create(&entry).Error; err != nil {
			return nil, fmt.Errorf("failed to create inventory entry: %w", err)
		}
		return &entry, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check inventory entry: %w", err)
	}

	entry.CurrentStock = req.CurrentStock
	entry.DailyUsage = req.DailyUsage
	entry.ReorderPoint = req.ReorderPoint
	entry.ReorderQty = req.ReorderQty
	entry.AutoOrderEnabled = req.AutoOrderEnabled

	if err := s.db.Save(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to update inventory entry: %w", err)
	}

	return &entry, nil
}

// GetEntry retrieves one ledger entry
func (s *Service) GetEntry(clientID, productID uint) (*InventoryEntry, error) {
	var entry InventoryEntry
	if err := s.db.Where("client_id = ? AND product_id = ?", clientID, productID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve inventory entry: %w", err)
	}
	return &entry, nil
}

// GetClientEntries retrieves all ledger entries for a client
func (s *Service) GetClientEntries(clientID uint) ([]InventoryEntry, error) {
	var entries []InventoryEntry
	if err := s.db.Where("client_id = ?", clientID).Order("product_id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve inventory entries: %w", err)
	}
	return entries, nil
}

// GetReorderCandidates returns the client's auto-enabled entries at or below
// their reorder point with a positive reorder quantity.
func (s *Service) GetReorderCandidates(clientID uint) ([]InventoryEntry, error) {
	var entries []InventoryEntry
	err := s.db.
		Where("client_id = ? AND auto_order_enabled = ?", clientID, true).
		Where("reorder_qty > 0 AND current_stock <= reorder_point").
		Order("product_id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve reorder candidates: %w", err)
	}
	return entries, nil
}

// ApplyDailyConsumption decrements every consuming entry once for the given
// business day. Entries already stamped for dayStart or later are skipped, so
// re-invoking the job mid-day cannot double-decrement. Returns the number of
// entries decremented.
func (s *Service) ApplyDailyConsumption(dayStart time.Time) (int, error) {
	decremented := 0

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entries []InventoryEntry
		if err := tx.
			Where("daily_usage > 0").
			Where("last_decrement_at IS NULL OR last_decrement_at < ?", dayStart).
			Find(&entries).Error; err != nil {
			return fmt.Errorf("failed to load consuming entries: %w", err)
		}

		now := time.Now().UTC()
		for i := range entries {
			entry := &entries[i]
			newStock := entry.CurrentStock - entry.DailyUsage
			if newStock < 0 {
				newStock = 0
			}

			// Guard on last_decrement_at again inside the UPDATE so a
			// concurrent run cannot apply the same day twice.
			result := tx.Model(&InventoryEntry{}).
				Where("id = ?", entry.ID).
				Where("last_decrement_at IS NULL OR last_decrement_at < ?", dayStart).
				Updates(map[string]interface{}{
					"current_stock":     newStock,
					"last_decrement_at": now,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to decrement entry %d: %w", entry.ID, result.Error)
			}
			if result.RowsAffected > 0 {
				decremented++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return decremented, nil
}

// GetAutoOrderClients returns the distinct client IDs with at least one
// auto-order-enabled entry.
func (s *Service) GetAutoOrderClients() ([]uint, error) {
	var clientIDs []uint
	err := s.db.Model(&InventoryEntry{}).
		Where("auto_order_enabled = ?", true).
		Distinct("client_id").
		Order("client_id").
		Pluck("client_id", &clientIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to collect auto-order clients: %w", err)
	}
	return clientIDs, nil
}

// AddDeliveredStock increments the ledger after a delivery is fulfilled
func (s *Service) AddDeliveredStock(tx *gorm.DB, clientID, productID uint, quantity int) error {
	if tx == nil {
		tx = s.db
	}

	result := tx.Model(&InventoryEntry{}).
		Where("client_id = ? AND product_id = ?", clientID, productID).
		UpdateColumn("current_stock", gorm.Expr("current_stock + ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to add delivered stock: %w", result.Error)
	}
	// No ledger entry for this product is fine: the client may not track it.
	return nil
}
