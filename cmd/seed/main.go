package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/retail-orders-backend/internal/config"
	"github.com/shinyyama/retail-orders-backend/internal/db"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/shinyyama/retail-orders-backend/internal/service"
	"github.com/shopspring/decimal"
)

const unitsPerVariation = 5

type seedItem struct {
	Name       string
	Price      int64
	Variations []string
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	items := repository.NewItemRepository(gdb)
	canSeed, err := shouldSeed(ctx, items)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Printf("items already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	tx := repository.NewTransactor(gdb)
	orders := repository.NewOrderRepository(gdb)
	inventory := service.NewInventoryService(tx, repository.NewInventoryRepository(gdb), orders, items)

	var created []uint64
	for _, s := range buildSeedItems() {
		item := &model.Item{Name: s.Name, Price: decimal.NewFromInt(s.Price), Active: true}
		for _, v := range s.Variations {
			item.Variations = append(item.Variations, model.Variation{Name: v})
		}
		if err := items.Create(ctx, item); err != nil {
			return fmt.Errorf("create item %q: %w", s.Name, err)
		}
		for _, v := range item.Variations {
			if _, err := inventory.StockUnits(ctx, item.ID, v.ID, unitsPerVariation); err != nil {
				return fmt.Errorf("stock %q/%q: %w", s.Name, v.Name, err)
			}
		}
		created = append(created, item.ID)
	}

	now := time.Now().UTC()
	promo := &model.Promotion{
		Name:       "Launch week",
		TimeStart:  now,
		TimeEnd:    now.AddDate(0, 0, 7),
		OffPercent: decimal.NewFromInt(10),
	}
	if len(created) > 0 {
		if err := createPromotion(ctx, tx, items, promo, created[:len(created)/2]); err != nil {
			return err
		}
	}

	log.Printf("seeded %d items with %d units per variation", len(created), unitsPerVariation)
	return nil
}

func buildSeedItems() []seedItem {
	return []seedItem{
		{Name: "Trail Runner 3", Price: 3200000, Variations: []string{"Black 42", "Black 43", "Blue 42"}},
		{Name: "Studio Headphones", Price: 4500000, Variations: []string{"Matte Black", "Silver"}},
		{Name: "14in Ultrabook", Price: 24900000, Variations: []string{"16GB/512GB", "32GB/1TB"}},
		{Name: "Espresso Grinder", Price: 5800000, Variations: []string{"Standard"}},
		{Name: "Commuter Backpack 28L", Price: 1900000, Variations: []string{"Charcoal", "Olive"}},
		{Name: "Smart Watch S", Price: 7600000, Variations: []string{"40mm", "44mm"}},
	}
}

func shouldSeed(ctx context.Context, items repository.ItemRepository) (bool, error) {
	cnt, err := items.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count items: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	force := os.Getenv("FORCE_SEED")
	return strings.EqualFold(force, "true"), nil
}

func createPromotion(ctx context.Context, tx repository.Transactor, items repository.ItemRepository, p *model.Promotion, itemIDs []uint64) error {
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		return items.CreatePromotion(ctx, p, itemIDs)
	})
	if err != nil {
		return fmt.Errorf("create promotion: %w", err)
	}
	return nil
}
