package repository

import (
	"context"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	CreateBatch(ctx context.Context, units []model.InventoryUnit) error
	FindByID(ctx context.Context, id uint64) (*model.InventoryUnit, error)
	CountInStock(ctx context.Context, variationID uint64) (int64, error)
	CountInStockByVariations(ctx context.Context, variationIDs []uint64) (map[uint64]int64, error)
	ListByVariation(ctx context.Context, variationID uint64, state model.UnitState) ([]model.InventoryUnit, error)
	FindByIDsForUpdate(ctx context.Context, ids []uint64) ([]model.InventoryUnit, error)
	TransitionState(ctx context.Context, ids []uint64, from, to model.UnitState) (int64, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) CreateBatch(ctx context.Context, units []model.InventoryUnit) error {
	if len(units) == 0 {
		return nil
	}
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.CreateInBatches(&units, 200).Error
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uint64) (*model.InventoryUnit, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var u model.InventoryUnit
	if err := db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *inventoryRepository) CountInStock(ctx context.Context, variationID uint64) (int64, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, err
	}
	var cnt int64
	if err := db.Model(&model.InventoryUnit{}).
		Where("variation_id = ? AND state = ?", variationID, model.UnitStateInStock).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *inventoryRepository) CountInStockByVariations(ctx context.Context, variationIDs []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(variationIDs))
	if len(variationIDs) == 0 {
		return out, nil
	}
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		VariationID uint64
		Cnt         int64
	}
	if err := db.Model(&model.InventoryUnit{}).
		Select("variation_id, COUNT(*) AS cnt").
		Where("variation_id IN ? AND state = ?", variationIDs, model.UnitStateInStock).
		Group("variation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.VariationID] = row.Cnt
	}
	return out, nil
}

func (r *inventoryRepository) ListByVariation(ctx context.Context, variationID uint64, state model.UnitState) ([]model.InventoryUnit, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var list []model.InventoryUnit
	if err := db.
		Where("variation_id = ? AND state = ?", variationID, state).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// FindByIDsForUpdate row-locks the units for the rest of the transaction.
func (r *inventoryRepository) FindByIDsForUpdate(ctx context.Context, ids []uint64) ([]model.InventoryUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var list []model.InventoryUnit
	if err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// TransitionState moves only the units still in from; callers compare the
// affected count with len(ids) to detect a lost race.
func (r *inventoryRepository) TransitionState(ctx context.Context, ids []uint64, from, to model.UnitState) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, err
	}
	res := db.Model(&model.InventoryUnit{}).
		Where("id IN ? AND state = ?", ids, from).
		Update("state", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
