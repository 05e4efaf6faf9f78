package inventory_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&inventory.InventoryEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Replenishment: config.ReplenishmentConfig{
			Timezone:            "UTC",
			DailyRunHour:        6,
			DailyAutoOrderLimit: 2,
			DedupWindow:         10 * time.Second,
			LockTTL:             2 * time.Minute,
			ReleaseTimeout:      30 * time.Minute,
			SweepInterval:       5 * time.Minute,
			SettlementTimeout:   5 * time.Second,
		},
	}
}

func seedEntry(t *testing.T, db *gorm.DB, entry inventory.InventoryEntry) inventory.InventoryEntry {
	t.Helper()
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return entry
}

func TestApplyDailyConsumptionFloorsAtZero(t *testing.T) {
	db := openTestDB(t)
	svc := inventory.NewService(db, testConfig())

	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 1, CurrentStock: 8, DailyUsage: 4})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 2, CurrentStock: 3, DailyUsage: 5})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 3, CurrentStock: 10, DailyUsage: 0})

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	decremented, err := svc.ApplyDailyConsumption(dayStart)
	if err != nil {
		t.Fatalf("ApplyDailyConsumption: %v", err)
	}
	if decremented != 2 {
		t.Fatalf("decremented = %d, want 2", decremented)
	}

	checkStock := func(productID uint, want int) {
		t.Helper()
		entry, err := svc.GetEntry(1, productID)
		if err != nil {
			t.Fatalf("GetEntry(%d): %v", productID, err)
		}
		if entry.CurrentStock != want {
			t.Fatalf("product %d stock = %d, want %d", productID, entry.CurrentStock, want)
		}
	}

	checkStock(1, 4)
	checkStock(2, 0) // floored, never negative
	checkStock(3, 10)

	entry, _ := svc.GetEntry(1, 1)
	if entry.LastDecrementAt == nil {
		t.Fatal("LastDecrementAt not stamped on decremented entry")
	}
	untouched, _ := svc.GetEntry(1, 3)
	if untouched.LastDecrementAt != nil {
		t.Fatal("LastDecrementAt stamped on entry with zero usage")
	}
}

func TestApplyDailyConsumptionIdempotentPerDay(t *testing.T) {
	db := openTestDB(t)
	svc := inventory.NewService(db, testConfig())

	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 1, CurrentStock: 8, DailyUsage: 4})

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if _, err := svc.ApplyDailyConsumption(dayStart); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Re-invoking mid-day must not double-decrement
	decremented, err := svc.ApplyDailyConsumption(dayStart)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if decremented != 0 {
		t.Fatalf("second run decremented = %d, want 0", decremented)
	}

	entry, _ := svc.GetEntry(1, 1)
	if entry.CurrentStock != 4 {
		t.Fatalf("stock after repeat run = %d, want 4", entry.CurrentStock)
	}

	// The next business day decrements again
	nextDay := dayStart.AddDate(0, 0, 1)
	decremented, err = svc.ApplyDailyConsumption(nextDay)
	if err != nil {
		t.Fatalf("next day run: %v", err)
	}
	if decremented != 1 {
		t.Fatalf("next day decremented = %d, want 1", decremented)
	}
	entry, _ = svc.GetEntry(1, 1)
	if entry.CurrentStock != 0 {
		t.Fatalf("stock after next day = %d, want 0", entry.CurrentStock)
	}
}

func TestGetReorderCandidates(t *testing.T) {
	db := openTestDB(t)
	svc := inventory.NewService(db, testConfig())

	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 1, CurrentStock: 4, ReorderPoint: 4, ReorderQty: 20, AutoOrderEnabled: true})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 2, CurrentStock: 9, ReorderPoint: 4, ReorderQty: 20, AutoOrderEnabled: true})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 3, CurrentStock: 0, ReorderPoint: 4, ReorderQty: 0, AutoOrderEnabled: true})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 4, CurrentStock: 0, ReorderPoint: 4, ReorderQty: 20, AutoOrderEnabled: false})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 2, ProductID: 1, CurrentStock: 0, ReorderPoint: 4, ReorderQty: 20, AutoOrderEnabled: true})

	candidates, err := svc.GetReorderCandidates(1)
	if err != nil {
		t.Fatalf("GetReorderCandidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].ProductID != 1 {
		t.Fatalf("candidate product = %d, want 1", candidates[0].ProductID)
	}
}

func TestGetAutoOrderClients(t *testing.T) {
	db := openTestDB(t)
	svc := inventory.NewService(db, testConfig())

	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 1, AutoOrderEnabled: true})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 2, AutoOrderEnabled: true})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 2, ProductID: 1, AutoOrderEnabled: false})
	seedEntry(t, db, inventory.InventoryEntry{ClientID: 3, ProductID: 1, AutoOrderEnabled: true})

	clients, err := svc.GetAutoOrderClients()
	if err != nil {
		t.Fatalf("GetAutoOrderClients: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("clients = %v, want [1 3]", clients)
	}
	if clients[0] != 1 || clients[1] != 3 {
		t.Fatalf("clients = %v, want [1 3]", clients)
	}
}

func TestAddDeliveredStock(t *testing.T) {
	db := openTestDB(t)
	svc := inventory.NewService(db, testConfig())

	seedEntry(t, db, inventory.InventoryEntry{ClientID: 1, ProductID: 1, CurrentStock: 2})

	if err := svc.AddDeliveredStock(nil, 1, 1, 15); err != nil {
		t.Fatalf("AddDeliveredStock: %v", err)
	}
	entry, _ := svc.GetEntry(1, 1)
	if entry.CurrentStock != 17 {
		t.Fatalf("stock = %d, want 17", entry.CurrentStock)
	}

	// Delivering a product the client does not track is not an error
	if err := svc.AddDeliveredStock(nil, 1, 99, 5); err != nil {
		t.Fatalf("AddDeliveredStock untracked: %v", err)
	}
}

func TestUpsertEntryCreatesAndUpdates(t *testing.T) {
	db := openTestDB(t)
	svc := inventory.NewService(db, testConfig())

	entry, err := svc.UpsertEntry(1, &inventory.UpsertEntryRequest{
		ProductID:        7,
		CurrentStock:     10,
		DailyUsage:       2,
		ReorderPoint:     4,
		ReorderQty:       12,
		AutoOrderEnabled: true,
	})
	if err != nil {
		t.Fatalf("UpsertEntry create: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("entry not persisted")
	}

	updated, err := svc.UpsertEntry(1, &inventory.UpsertEntryRequest{
		ProductID:    7,
		CurrentStock: 3,
		DailyUsage:   1,
		ReorderPoint: 2,
		ReorderQty:   6,
	})
	if err != nil {
		t.Fatalf("UpsertEntry update: %v", err)
	}
	if updated.ID != entry.ID {
		t.Fatalf("update created a new row: %d != %d", updated.ID, entry.ID)
	}
	if updated.CurrentStock != 3 || updated.AutoOrderEnabled {
		t.Fatalf("update not applied: %+v", updated)
	}
}
