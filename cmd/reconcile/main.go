package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/retail-orders-backend/internal/config"
	"github.com/shinyyama/retail-orders-backend/internal/db"
	"github.com/shinyyama/retail-orders-backend/internal/gateway"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/shinyyama/retail-orders-backend/internal/service"
	"github.com/shopspring/decimal"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("reconcile failed: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rate, err := decimal.NewFromString(cfg.GatewayExchangeRate)
	if err != nil {
		return fmt.Errorf("parse exchange rate: %w", err)
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}

	tx := repository.NewTransactor(conn)
	itemRepo := repository.NewItemRepository(conn)
	inventoryRepo := repository.NewInventoryRepository(conn)
	orderRepo := repository.NewOrderRepository(conn)
	notifySvc := service.NewNotificationService(repository.NewNotificationRepository(conn))
	inventorySvc := service.NewInventoryService(tx, inventoryRepo, orderRepo, itemRepo)
	orderSvc := service.NewOrderService(tx, orderRepo, repository.NewCustomerRepository(conn), itemRepo, inventoryRepo, inventorySvc, notifySvc)
	paymentSvc := service.NewPaymentService(tx, orderSvc, orderRepo, repository.NewPaymentRepository(conn),
		gateway.NewStripeClient(cfg.StripeSecretKey), notifySvc, cfg.GatewayCurrency, rate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	report, err := paymentSvc.Reconcile(ctx, cfg.ReconcileAfter)
	if err != nil {
		return err
	}
	log.Printf("[reconcile] stage=done checked=%d succeeded=%d rejected=%d abandoned=%d open=%d errors=%d",
		report.Checked, report.Succeeded, report.Rejected, report.Abandoned, report.Open, report.Errors)
	return nil
}
