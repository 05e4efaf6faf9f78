package product_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/product"
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
	if err := db.AutoMigrate(&product.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	svc := product.NewService(openTestDB(t), &config.Config{})

	req := &product.CreateProductRequest{SKU: "GLV-M", Name: "Nitrile Gloves M", Price: 1250, StockQuantity: 100}
	if _, err := svc.CreateProduct(req); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if _, err := svc.CreateProduct(req); err == nil {
		t.Fatal("expected duplicate SKU error")
	}
}

func TestAdjustStock(t *testing.T) {
	svc := product.NewService(openTestDB(t), &config.Config{})

	p, err := svc.CreateProduct(&product.CreateProductRequest{SKU: "SYR-5", Name: "Syringe 5ml", Price: 90, StockQuantity: 10})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	if err := svc.AdjustStock(nil, p.ID, -4); err != nil {
		t.Fatalf("AdjustStock decrement: %v", err)
	}
	if err := svc.AdjustStock(nil, p.ID, 2); err != nil {
		t.Fatalf("AdjustStock increment: %v", err)
	}

	got, err := svc.GetProduct(p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.StockQuantity != 8 {
		t.Fatalf("stock = %d, want 8", got.StockQuantity)
	}
}

func TestAdjustStockGuardsNegative(t *testing.T) {
	svc := product.NewService(openTestDB(t), &config.Config{})

	p, err := svc.CreateProduct(&product.CreateProductRequest{SKU: "MSK-N95", Name: "N95 Mask", Price: 300, StockQuantity: 3})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	err = svc.AdjustStock(nil, p.ID, -5)
	if !errors.Is(err, product.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	got, _ := svc.GetProduct(p.ID)
	if got.StockQuantity != 3 {
		t.Fatalf("stock mutated on rejected decrement: %d", got.StockQuantity)
	}
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	svc := product.NewService(openTestDB(t), &config.Config{})

	if err := svc.AdjustStock(nil, 42, 5); !errors.Is(err, product.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListProductsSkipsInactive(t *testing.T) {
	svc := product.NewService(openTestDB(t), &config.Config{})

	p, _ := svc.CreateProduct(&product.CreateProductRequest{SKU: "A", Name: "Active", Price: 100})
	inactive, _ := svc.CreateProduct(&product.CreateProductRequest{SKU: "B", Name: "Retired", Price: 100})

	off := false
	if _, err := svc.UpdateProduct(inactive.ID, &product.UpdateProductRequest{IsActive: &off}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	products, err := svc.ListProducts()
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 || products[0].ID != p.ID {
		t.Fatalf("ListProducts = %+v, want only the active product", products)
	}
}
