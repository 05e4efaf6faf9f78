// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/domain/product"
	"gorm.io/gorm"
)

// Migration handles database schema migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{db: db}
}

// RunAutoMigrations runs gorm auto-migrations for all entities
func (m *Migration) RunAutoMigrations() error {
	log.Println("Running database migrations...")

	entities := []interface{}{
		&client.Client{},
		&product.Product{},
		&inventory.InventoryEntry{},
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
		&order.ConsumptionRun{},
	}

	for _, entity := range entities {
		if err := m.db.AutoMigrate(entity); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", entity, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}

// CreateIndexes creates additional indexes gorm tags do not cover
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// order counters query by client + local calendar day + mode
		"CREATE INDEX IF NOT EXISTS idx_orders_client_created ON orders (client_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_orders_mode_created ON orders (mode, created_at)",
		// release sweep scans unpaid pending orders by age
		"CREATE INDEX IF NOT EXISTS idx_orders_payment_pending ON orders (payment_status, status, created_at)",
	}

	for _, idx := range indexes {
		if err := m.db.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// SeedInitialData seeds development data
func (m *Migration) SeedInitialData() error {
	var count int64
	if err := m.db.Model(&product.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return nil
	}

	products := []product.Product{
		{SKU: "GLV-NIT-M", Name: "Nitrile Exam Gloves (M)", Price: 1299, StockQuantity: 500, IsActive: true},
		{SKU: "MSK-SRG-50", Name: "Surgical Masks, 50 pack", Price: 899, StockQuantity: 300, IsActive: true},
		{SKU: "SYR-5ML-100", Name: "5ml Syringes, 100 pack", Price: 2450, StockQuantity: 150, IsActive: true},
		{SKU: "GWN-ISO-L", Name: "Isolation Gowns (L)", Price: 3999, StockQuantity: 80, IsActive: true},
	}

	for _, p := range products {
		if err := m.db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.SKU, err)
		}
	}

	log.Printf("Seeded %d products", len(products))
	return nil
}
