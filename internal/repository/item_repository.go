package repository

import (
	"context"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"gorm.io/gorm"
)

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	CreatePromotion(ctx context.Context, p *model.Promotion, itemIDs []uint64) error
	FindByID(ctx context.Context, id uint64) (*model.Item, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]model.Item, error)
	Count(ctx context.Context) (int64, error)
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Create(item).Error
}

// CreatePromotion writes the promotion and then its item links. Callers run
// it inside Transactor.WithTransaction so both land together.
func (r *itemRepository) CreatePromotion(ctx context.Context, p *model.Promotion, itemIDs []uint64) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(p).Error; err != nil {
		return err
	}
	if len(itemIDs) == 0 {
		return nil
	}
	links := make([]model.PromotionLink, 0, len(itemIDs))
	for _, id := range itemIDs {
		links = append(links, model.PromotionLink{PromotionID: p.ID, ItemID: id})
	}
	return db.Create(&links).Error
}

// FindByID loads the item with its variations and promotions.
func (r *itemRepository) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var item model.Item
	if err := withCatalog(db).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var items []model.Item
	if err := withCatalog(db).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) Count(ctx context.Context) (int64, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := db.Model(&model.Item{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// promotion links are ordered by id so first-match pricing is stable
func withCatalog(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variations").
		Preload("PromotionLinks", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("promotion_links.id ASC")
		}).
		Preload("PromotionLinks.Promotion")
}
