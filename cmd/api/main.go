// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/domain/payment"
	"github.com/your-org/medsupply-backend/internal/domain/product"
	"github.com/your-org/medsupply-backend/internal/domain/replenishment"
	"github.com/your-org/medsupply-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/medsupply-backend/internal/infrastructure/database/redis"
	"github.com/your-org/medsupply-backend/internal/interfaces/http"
	"github.com/your-org/medsupply-backend/internal/pkg/email"
	"github.com/your-org/medsupply-backend/internal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Connect to database
	db, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	if err := db.Health(); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}
	if err := redisClient.Health(); err != nil {
		log.Fatalf("Redis health check failed: %v", err)
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB())

	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	if err := migration.CreateIndexes(); err != nil {
		log.Printf("Warning: Index creation failed: %v", err)
	}

	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.Printf("Warning: Data seeding failed: %v", err)
		}
	}

	// Wire the replenishment engine
	appLogger := logger.New(cfg)

	clientService := client.NewService(db.GetDB(), cfg)
	productService := product.NewService(db.GetDB(), cfg)
	inventoryService := inventory.NewService(db.GetDB(), cfg)
	orderService := order.NewService(db.GetDB(), cfg, productService, inventoryService)

	notifier := replenishment.NewEmailNotifier(cfg, email.NewEmailService(cfg))
	gateway := payment.NewStripeGateway(cfg)

	assembler := replenishment.NewAssembler(appLogger, inventoryService, productService, orderService)
	settler := replenishment.NewSettler(cfg, appLogger, gateway, orderService, notifier)
	engine := replenishment.NewEngine(cfg, appLogger, clientService, orderService, assembler, settler, notifier)

	scheduler := replenishment.NewScheduler(cfg, appLogger, db.GetDB(), inventoryService, engine, redisClient.GetLocker())
	releaseWorker := replenishment.NewReleaseWorker(cfg, appLogger, orderService, clientService, notifier, redisClient.GetLocker())

	// Background workers stop when this context is cancelled on shutdown
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go scheduler.Run(workerCtx)
	go releaseWorker.Run(workerCtx)

	// Create and start HTTP server
	server := http.NewServer(cfg, db.GetDB(), redisClient.GetClient())

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Println("Server shutdown completed")
}
