package replenishment_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/domain/payment"
	"github.com/your-org/medsupply-backend/internal/domain/product"
)

// A depleted ledger entry whose reorder quantity exceeds supplier stock:
// the line is clamped with an adjustment note, charged off-session, and
// supplier stock is committed exactly once.
func TestAutoOrderClampsToSupplierStockAndSettles(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 15)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 4, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 20,
		AutoOrderEnabled: true,
	})

	result, err := env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient: %v", err)
	}
	if result.Rejection != nil || result.NothingToOrder {
		t.Fatalf("unexpected result: %+v", result)
	}

	ord := result.Order
	if ord.Mode != order.OrderModeAuto || !strings.HasPrefix(ord.OrderNumber, "AUT-") {
		t.Fatalf("order = %s %s", ord.Mode, ord.OrderNumber)
	}
	if len(ord.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(ord.Items))
	}
	item := ord.Items[0]
	if item.Quantity != 15 {
		t.Fatalf("quantity = %d, want clamped to 15", item.Quantity)
	}
	if item.AdjustmentNote == "" || !strings.Contains(item.AdjustmentNote, "reduced from 20 to 15") {
		t.Fatalf("adjustment note = %q", item.AdjustmentNote)
	}
	if ord.TotalAmount != 15*1250 {
		t.Fatalf("total = %d, want %d", ord.TotalAmount, 15*1250)
	}

	if ord.PaymentStatus != order.PaymentStatusPaid || !ord.StockCommitted {
		t.Fatalf("order not settled: %s committed=%v", ord.PaymentStatus, ord.StockCommitted)
	}
	if got := env.supplierStock(t, p.ID); got != 0 {
		t.Fatalf("supplier stock = %d, want 0", got)
	}
	if env.gateway.chargeCount() != 1 {
		t.Fatalf("charges = %d, want exactly 1", env.gateway.chargeCount())
	}
	if env.notifier.settled != 1 {
		t.Fatalf("settled notifications = %d, want 1", env.notifier.settled)
	}
}

func TestAutoOrderNothingToOrder(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 50)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 30, DailyUsage: 1, ReorderPoint: 4, ReorderQty: 20,
		AutoOrderEnabled: true,
	})

	result, err := env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient: %v", err)
	}
	if !result.NothingToOrder {
		t.Fatalf("result = %+v, want NothingToOrder", result)
	}
	if env.gateway.chargeCount() != 0 {
		t.Fatal("gateway called with nothing to order")
	}

	count, _ := env.orders.CountOrdersForDay(c.ID, order.OrderModeAuto, time.Now())
	if count != 0 {
		t.Fatalf("auto orders recorded = %d, want 0", count)
	}
}

func TestQuotaCeilingRejectsThirdAutoOrder(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 500)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
		AutoOrderEnabled: true,
	})

	// Two settled auto orders already today
	for i := 0; i < 2; i++ {
		if _, err := env.orders.CreateOrder(c.ID, order.OrderModeAuto, []order.OrderItem{
			{ProductID: p.ID, SKU: p.SKU, Name: p.Name, Quantity: 1, UnitPrice: p.Price, TotalPrice: p.Price},
		}, ""); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
	}

	result, err := env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient: %v", err)
	}
	if result.Rejection == nil || result.Rejection.Reason != order.DeclineReasonQuotaExceeded {
		t.Fatalf("result = %+v, want quota rejection", result)
	}
	if env.gateway.chargeCount() != 0 {
		t.Fatal("gateway called on rejected order")
	}

	// The rejection record does not consume quota
	count, _ := env.orders.CountOrdersForDay(c.ID, order.OrderModeAuto, time.Now())
	if count != 2 {
		t.Fatalf("auto count = %d, want 2", count)
	}

	// Repeats the same day reuse the record and notify once
	if _, err := env.engine.ProcessClient(context.Background(), c.ID); err != nil {
		t.Fatalf("repeat ProcessClient: %v", err)
	}
	if env.notifier.rejected != 1 {
		t.Fatalf("rejection notifications = %d, want 1", env.notifier.rejected)
	}

	var records int64
	env.db.Model(&order.Order{}).
		Where("client_id = ? AND decline_reason = ?", c.ID, order.DeclineReasonQuotaExceeded).
		Count(&records)
	if records != 1 {
		t.Fatalf("rejection records = %d, want 1", records)
	}
}

func TestManualOrderRequiredBeforeSecondAutoOrder(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 500)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
		AutoOrderEnabled: true,
	})

	// One auto order today, no manual order yet
	if _, err := env.orders.CreateOrder(c.ID, order.OrderModeAuto, []order.OrderItem{
		{ProductID: p.ID, SKU: p.SKU, Name: p.Name, Quantity: 1, UnitPrice: p.Price, TotalPrice: p.Price},
	}, ""); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	result, err := env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient: %v", err)
	}
	if result.Rejection == nil || result.Rejection.Reason != order.DeclineReasonManualOrderRequired {
		t.Fatalf("result = %+v, want manual-order-required rejection", result)
	}

	// A manual order re-arms the second auto order
	if _, err := env.orders.CreateManualOrder(c.ID, []order.LineRequest{{ProductID: p.ID, Quantity: 1}}); err != nil {
		t.Fatalf("CreateManualOrder: %v", err)
	}

	result, err = env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient after manual: %v", err)
	}
	if result.Order == nil || result.Order.PaymentStatus != order.PaymentStatusPaid {
		t.Fatalf("result after manual = %+v, want settled order", result)
	}
}

func TestSettlementDeclineFailsOrderWithoutStockMutation(t *testing.T) {
	env := newEngineEnv(t)
	env.gateway.chargeErr = payment.ErrChargeDeclined

	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p := env.seedProduct(t, "GLV-M", 1250, 50)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
		AutoOrderEnabled: true,
	})

	result, err := env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient: %v", err)
	}
	if result.Order == nil || result.Order.PaymentStatus != order.PaymentStatusFailed {
		t.Fatalf("result = %+v, want failed order", result)
	}
	if got := env.supplierStock(t, p.ID); got != 50 {
		t.Fatalf("supplier stock = %d, want 50 untouched", got)
	}
	if env.notifier.failed != 1 {
		t.Fatalf("failure notifications = %d, want 1", env.notifier.failed)
	}
}

func TestMissingPaymentProfileFailsWithoutGatewayCall(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "") // no stored profile
	p := env.seedProduct(t, "GLV-M", 1250, 50)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p.ID,
		CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
		AutoOrderEnabled: true,
	})

	result, err := env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient: %v", err)
	}
	if result.Order == nil || result.Order.PaymentStatus != order.PaymentStatusFailed {
		t.Fatalf("result = %+v, want failed order", result)
	}
	if !strings.Contains(result.Order.Notes, "no stored payment method") {
		t.Fatalf("notes = %q", result.Order.Notes)
	}
	if env.gateway.chargeCount() != 0 {
		t.Fatal("gateway charged a client with no stored profile")
	}
}

func TestTriggerRestrictsAssemblyToRequestedProducts(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	p1 := env.seedProduct(t, "GLV-M", 1250, 50)
	p2 := env.seedProduct(t, "SYR-5", 90, 50)
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p1.ID,
		CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
		AutoOrderEnabled: true,
	})
	env.seedEntry(t, inventory.InventoryEntry{
		ClientID: c.ID, ProductID: p2.ID,
		CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
		AutoOrderEnabled: true,
	})

	result, err := env.engine.ProcessClientProducts(context.Background(), c.ID, []uint{p2.ID})
	if err != nil {
		t.Fatalf("ProcessClientProducts: %v", err)
	}
	if result.Order == nil || len(result.Order.Items) != 1 {
		t.Fatalf("result = %+v, want one-line order", result)
	}
	if result.Order.Items[0].ProductID != p2.ID {
		t.Fatalf("ordered product = %d, want %d", result.Order.Items[0].ProductID, p2.ID)
	}
}

func TestAssemblySkipsInactiveAndOutOfStockProducts(t *testing.T) {
	env := newEngineEnv(t)
	c := env.seedClient(t, "clinic@example.com", "cus_test_1")
	active := env.seedProduct(t, "GLV-M", 1250, 50)
	retired := env.seedProduct(t, "OLD-1", 500, 50)
	empty := env.seedProduct(t, "EMP-1", 700, 0)

	off := false
	if _, err := env.products.UpdateProduct(retired.ID, &product.UpdateProductRequest{IsActive: &off}); err != nil {
		t.Fatalf("retire product: %v", err)
	}

	for _, id := range []uint{active.ID, retired.ID, empty.ID} {
		env.seedEntry(t, inventory.InventoryEntry{
			ClientID: c.ID, ProductID: id,
			CurrentStock: 0, DailyUsage: 4, ReorderPoint: 4, ReorderQty: 10,
			AutoOrderEnabled: true,
		})
	}

	result, err := env.engine.ProcessClient(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ProcessClient: %v", err)
	}
	if result.Order == nil || len(result.Order.Items) != 1 {
		t.Fatalf("result = %+v, want one-line order", result)
	}
	if result.Order.Items[0].ProductID != active.ID {
		t.Fatalf("ordered product = %d, want %d", result.Order.Items[0].ProductID, active.ID)
	}
}
