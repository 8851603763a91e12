package repository

import (
	"context"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
	TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, fields map[string]interface{}) (int64, error)
	CreateAllocations(ctx context.Context, allocs []model.OrderAllocation) error
	AllocatedUnitIDs(ctx context.Context, orderID string) ([]uint64, error)
	MarkPaymentPaid(ctx context.Context, orderID string, installment int, paidAt time.Time) (int64, error)
	CreatePaymentIfAbsent(ctx context.Context, p *model.OrderPayment) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order together with its details and payments.
func (r *orderRepository) Create(ctx context.Context, o *model.Order) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Create(o).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var o model.Order
	if err := db.
		Preload("Details", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_details.id ASC") }).
		Preload("Details.Allocations").
		Preload("Payments", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_payments.installment ASC") }).
		Where("id = ?", id).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var list []model.Order
	if err := db.
		Preload("Details").
		Preload("Payments").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// TransitionStatus is a compare-and-set on status. Zero rows means the order
// was not in from (or does not exist).
func (r *orderRepository) TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, fields map[string]interface{}) (int64, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, err
	}
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := db.Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *orderRepository) CreateAllocations(ctx context.Context, allocs []model.OrderAllocation) error {
	if len(allocs) == 0 {
		return nil
	}
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Create(&allocs).Error
}

func (r *orderRepository) AllocatedUnitIDs(ctx context.Context, orderID string) ([]uint64, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := db.Model(&model.OrderAllocation{}).
		Where("order_id = ?", orderID).
		Order("inventory_unit_id ASC").
		Pluck("inventory_unit_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *orderRepository) MarkPaymentPaid(ctx context.Context, orderID string, installment int, paidAt time.Time) (int64, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, err
	}
	res := db.Model(&model.OrderPayment{}).
		Where("order_id = ? AND installment = ? AND is_paid = ?", orderID, installment, false).
		Updates(map[string]interface{}{
			"is_paid": true,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CreatePaymentIfAbsent relies on the (order_id, installment) unique index;
// it reports false when the row already existed.
func (r *orderRepository) CreatePaymentIfAbsent(ctx context.Context, p *model.OrderPayment) (bool, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return false, err
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
