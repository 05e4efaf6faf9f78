package replenishment_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/domain/payment"
	"github.com/your-org/medsupply-backend/internal/domain/product"
	"github.com/your-org/medsupply-backend/internal/domain/replenishment"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

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

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeGateway is an in-memory payment.Gateway with scripted outcomes
type fakeGateway struct {
	mu        sync.Mutex
	methodID  string
	methodErr error
	chargeErr error
	charges   []payment.StoredChargeRequest
}

func (g *fakeGateway) DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error) {
	if g.methodErr != nil {
		return "", g.methodErr
	}
	if g.methodID == "" {
		return "pm_fake", nil
	}
	return g.methodID, nil
}

func (g *fakeGateway) CreateStoredCharge(ctx context.Context, req *payment.StoredChargeRequest) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges = append(g.charges, *req)
	return &payment.ChargeResult{Reference: "pi_fake_1", Status: "succeeded"}, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

// fakeNotifier counts terminal-outcome notifications per kind
type fakeNotifier struct {
	mu       sync.Mutex
	settled  int
	failed   int
	rejected int
	expired  int
}

func (n *fakeNotifier) NotifyOrderSettled(ctx context.Context, c *client.Client, ord *order.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled++
	return nil
}

func (n *fakeNotifier) NotifyPaymentFailed(ctx context.Context, c *client.Client, ord *order.Order, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed++
	return nil
}

func (n *fakeNotifier) NotifyPolicyRejection(ctx context.Context, c *client.Client, reason, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected++
	return nil
}

func (n *fakeNotifier) NotifyOrderExpired(ctx context.Context, c *client.Client, ord *order.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
	return nil
}

// engineEnv wires the full replenishment engine over sqlite with fakes at
// the gateway and notification edges.
type engineEnv struct {
	db        *gorm.DB
	config    *config.Config
	clients   *client.Service
	products  *product.Service
	inventory *inventory.Service
	orders    *order.Service
	gateway   *fakeGateway
	notifier  *fakeNotifier
	engine    *replenishment.Engine
	scheduler *replenishment.Scheduler
	release   *replenishment.ReleaseWorker
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&client.Client{},
		&product.Product{},
		&inventory.InventoryEntry{},
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
		&order.ConsumptionRun{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig()
	log := testLogger()

	clients := client.NewService(db, cfg)
	products := product.NewService(db, cfg)
	inventoryService := inventory.NewService(db, cfg)
	orders := order.NewService(db, cfg, products, inventoryService)

	gateway := &fakeGateway{}
	notifier := &fakeNotifier{}

	assembler := replenishment.NewAssembler(log, inventoryService, products, orders)
	settler := replenishment.NewSettler(cfg, log, gateway, orders, notifier)
	engine := replenishment.NewEngine(cfg, log, clients, orders, assembler, settler, notifier)

	return &engineEnv{
		db:        db,
		config:    cfg,
		clients:   clients,
		products:  products,
		inventory: inventoryService,
		orders:    orders,
		gateway:   gateway,
		notifier:  notifier,
		engine:    engine,
		scheduler: replenishment.NewScheduler(cfg, log, db, inventoryService, engine, nil),
		release:   replenishment.NewReleaseWorker(cfg, log, orders, clients, notifier, nil),
	}
}

func (e *engineEnv) seedClient(t *testing.T, email, paymentCustomerID string) *client.Client {
	t.Helper()
	c, err := e.clients.CreateClient(&client.CreateClientRequest{
		Name:              "Riverside Clinic",
		Email:             email,
		PaymentCustomerID: paymentCustomerID,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func (e *engineEnv) seedProduct(t *testing.T, sku string, price int64, stock int) *product.Product {
	t.Helper()
	p, err := e.products.CreateProduct(&product.CreateProductRequest{
		SKU:           sku,
		Name:          "Product " + sku,
		Price:         price,
		StockQuantity: stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func (e *engineEnv) seedEntry(t *testing.T, entry inventory.InventoryEntry) {
	t.Helper()
	if err := e.db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func (e *engineEnv) supplierStock(t *testing.T, productID uint) int {
	t.Helper()
	p, err := e.products.GetProduct(productID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	return p.StockQuantity
}
