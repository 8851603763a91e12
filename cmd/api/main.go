package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/retail-orders-backend/internal/config"
	"github.com/shinyyama/retail-orders-backend/internal/db"
	"github.com/shinyyama/retail-orders-backend/internal/gateway"
	appmw "github.com/shinyyama/retail-orders-backend/internal/middleware"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/shinyyama/retail-orders-backend/internal/server"
	"github.com/shinyyama/retail-orders-backend/internal/service"
	"github.com/shopspring/decimal"
)

var (
	gitSHA    = "dev"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	rate, err := decimal.NewFromString(cfg.GatewayExchangeRate)
	if err != nil {
		log.Fatalf("invalid GATEWAY_EXCHANGE_RATE %q: %v", cfg.GatewayExchangeRate, err)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis ping error: %v", err)
	}

	authMw, err := appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID, cfg.StaffClaim)
	if err != nil {
		log.Fatalf("failed to init firebase auth: %v", err)
	}

	tx := repository.NewTransactor(conn)
	itemRepo := repository.NewItemRepository(conn)
	inventoryRepo := repository.NewInventoryRepository(conn)
	orderRepo := repository.NewOrderRepository(conn)
	paymentRepo := repository.NewPaymentRepository(conn)
	customerRepo := repository.NewCustomerRepository(conn)
	cartRepo := repository.NewCartRepository(rdb, "cart", cfg.CartTTL)

	notifySvc := service.NewNotificationService(repository.NewNotificationRepository(conn))
	inventorySvc := service.NewInventoryService(tx, inventoryRepo, orderRepo, itemRepo)
	orderSvc := service.NewOrderService(tx, orderRepo, customerRepo, itemRepo, inventoryRepo, inventorySvc, notifySvc)
	paymentSvc := service.NewPaymentService(tx, orderSvc, orderRepo, paymentRepo,
		gateway.NewStripeClient(cfg.StripeSecretKey), notifySvc, cfg.GatewayCurrency, rate)

	srv := server.New(server.Deps{
		Auth:      authMw,
		Carts:     service.NewCartService(cartRepo, itemRepo, inventoryRepo),
		Orders:    orderSvc,
		Inventory: inventorySvc,
		Payments:  paymentSvc,
		Customers: service.NewCustomerService(customerRepo),
		Notices:   notifySvc,
		Events:    gateway.NewWebhookParser(cfg.StripeWebhookSecret),
		SHA:       gitSHA,
		BuildTime: buildTime,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting server on %s", addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
