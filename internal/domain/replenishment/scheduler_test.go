package replenishment_test

import (
	"context"
	"testing"
	"time"

	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
)

func TestRunDailyDecrementsAndOrders(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 15)

	// 8 on the shelf, 4 used per day, reorder at 4 for 20, supplier only
	// has 15.
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 8, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 20,
		AutoOrderEnabled: true,
	})

	if err := env.scheduler.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily: %v", err)
	}

	// 8 - 4 = 4 hits the reorder point and triggers the clamped order
	entry, err := env.inventory.GetEntry(c.ID, p.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.CurrentStock != 4 {
		t.Fatalf("ledger stock = %d, want 4", entry.CurrentStock)
	}

	count, err := env.orders.CountOrdersForDay(c.ID, order.OrderModeAuto, entry.UpdatedAt)
	if err != nil {
		t.Fatalf("CountOrdersForDay: %v", err)
	}
	if count != 1 {
		t.Fatalf("auto orders = %d, want 1", count)
	}
	if env.gateway.chargeCount() != 1 {
		t.Fatalf("charges = %d, want 1", env.gateway.chargeCount())
	}
	if got := env.supplierStock(t, p.ID); got != 0 {
		t.Fatalf("supplier stock = %d, want 0", got)
	}

	var run order.ConsumptionRun
	if err := env.db.First(&run).Error; err != nil {
		t.Fatalf("load run record: %v", err)
	}
	if run.EntriesDecremented != 1 || run.ClientsProcessed != 1 || run.ClientsFailed != 0 {
		t.Fatalf("run record = %+v", run)
	}
	if run.FinishedAt == nil {
		t.Fatal("run record not finalized")
	}
}

func TestRunDailyIdempotentPerDay(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 500)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 8, DailyUsage: 4, ReorderPoint: 0, ReorderQty: 0,
		AutoOrderEnabled: true,
	})

	if err := env.scheduler.RunDaily(context.Background()); err != nil {
		t.Fatalf("first RunDaily: %v", err)
	}
	// A restarted instance re-invoking the job finds the claim and backs off
	if err := env.scheduler.RunDaily(context.Background()); err != nil {
		t.Fatalf("second RunDaily: %v", err)
	}

	entry, _ := env.inventory.GetEntry(c.ID, p.ID)
	if entry.CurrentStock != 4 {
		t.Fatalf("ledger stock = %d, want 4 after repeated runs", entry.CurrentStock)
	}

	var runs int64
	env.db.Model(&order.ConsumptionRun{}).Count(&runs)
	if runs != 1 {
		t.Fatalf("run records = %d, want 1", runs)
	}
}

func TestRunDailyReclaimsAbandonedClaim(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 500)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 8, DailyUsage: 4, ReorderPoint: 0, ReorderQty: 0,
		AutoOrderEnabled: true,
	})

	// A previous instance claimed today, then died before finalizing
	runDate := time.Now().In(env.config.Location()).Format("2006-01-02")
	abandoned := order.ConsumptionRun{
		RunDate:   runDate,
		StartedAt: time.Now().UTC().Add(-10 * time.Minute),
	}
	if err := env.db.Create(&abandoned).Error; err != nil {
		t.Fatalf("seed abandoned run: %v", err)
	}

	if err := env.scheduler.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily: %v", err)
	}

	entry, _ := env.inventory.GetEntry(c.ID, p.ID)
	if entry.CurrentStock != 4 {
		t.Fatalf("ledger stock = %d, want 4 after reclaimed run", entry.CurrentStock)
	}

	var run order.ConsumptionRun
	if err := env.db.First(&run, abandoned.ID).Error; err != nil {
		t.Fatalf("load run record: %v", err)
	}
	if run.FinishedAt == nil {
		t.Fatal("reclaimed run not finalized")
	}

	var runs int64
	env.db.Model(&order.ConsumptionRun{}).Count(&runs)
	if runs != 1 {
		t.Fatalf("run records = %d, want 1", runs)
	}
}

func TestRunDailyBacksOffFromClaimInProgress(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 500)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 8, DailyUsage: 4, ReorderPoint: 0, ReorderQty: 0,
		AutoOrderEnabled: true,
	})

	// Another instance claimed today moments ago and is still inside the
	// lock TTL
	runDate := time.Now().In(env.config.Location()).Format("2006-01-02")
	claimed := order.ConsumptionRun{
		RunDate:   runDate,
		StartedAt: time.Now().UTC(),
	}
	if err := env.db.Create(&claimed).Error; err != nil {
		t.Fatalf("seed in-flight run: %v", err)
	}

	if err := env.scheduler.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily: %v", err)
	}

	entry, _ := env.inventory.GetEntry(c.ID, p.ID)
	if entry.CurrentStock != 8 {
		t.Fatalf("ledger stock = %d, want 8 with run in progress", entry.CurrentStock)
	}

	var run order.ConsumptionRun
	if err := env.db.First(&run, claimed.ID).Error; err != nil {
		t.Fatalf("load run record: %v", err)
	}
	if run.FinishedAt != nil {
		t.Fatal("in-flight claim was finalized by the backed-off run")
	}
}

func TestRunDailyIsolatesClientFailures(t *testing.T) {
	env := newEngineEnv(t)

	healthy := env.seedClient(t, "clinic@example.com", "cus_test_1")
	broken := env.seedClient(t, "closed@example.com", "cus_test_2")
	if err := env.db.Model(&client.Client{}).
		Where("id = ?", broken.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate client: %v", err)
	}

	p := env.seedProduct(t, "GLV-M", 1250, 500)
	for _, clientID := range []uint{broken.ID, healthy.ID} {
		env.seedEntry(t, inventory.InventoryEntry{
			ClientID: clientID, ProductID: p.ID,
			CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
			AutoOrderEnabled: true,
		})
	}

	if err := env.scheduler.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily: %v", err)
	}

	// The inactive client's failure must not stop the healthy client's order
	count, _ := env.orders.CountOrdersForDay(healthy.ID, order.OrderModeAuto, time.Now())
	if count != 1 {
		t.Fatalf("healthy client auto orders = %d, want 1", count)
	}

	var run order.ConsumptionRun
	if err := env.db.First(&run).Error; err != nil {
		t.Fatalf("load run record: %v", err)
	}
	if run.ClientsProcessed != 1 || run.ClientsFailed != 1 {
		t.Fatalf("run record = processed %d failed %d, want 1/1", run.ClientsProcessed, run.ClientsFailed)
	}
}
