package repository

import (
	"context"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	CreateRef(ctx context.Context, ref *model.PaymentRef) error
	AttachIntent(ctx context.Context, orderID, intentID string, amountMinor int64) error
	FindRefByIntent(ctx context.Context, intentID string) (*model.PaymentRef, error)
	FindRefByOrder(ctx context.Context, orderID string) (*model.PaymentRef, error)
	UpdateRefStatus(ctx context.Context, orderID string, status model.PaymentRefStatus) error
	ListStaleRefs(ctx context.Context, before time.Time, statuses []model.PaymentRefStatus, afterID uint64, limit int) ([]model.PaymentRef, error)
	RecordEvent(ctx context.Context, ev *model.WebhookEvent) (bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreateRef(ctx context.Context, ref *model.PaymentRef) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Create(ref).Error
}

func (r *paymentRepository) AttachIntent(ctx context.Context, orderID, intentID string, amountMinor int64) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	res := db.Model(&model.PaymentRef{}).
		Where("order_id = ? AND status = ?", orderID, model.PaymentRefPending).
		Updates(map[string]interface{}{
			"intent_id":    intentID,
			"amount_minor": amountMinor,
			"status":       model.PaymentRefAwaitingPayment,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *paymentRepository) FindRefByIntent(ctx context.Context, intentID string) (*model.PaymentRef, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var ref model.PaymentRef
	if err := db.Where("intent_id = ?", intentID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *paymentRepository) FindRefByOrder(ctx context.Context, orderID string) (*model.PaymentRef, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var ref model.PaymentRef
	if err := db.Where("order_id = ?", orderID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *paymentRepository) UpdateRefStatus(ctx context.Context, orderID string, status model.PaymentRefStatus) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Model(&model.PaymentRef{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

func (r *paymentRepository) ListStaleRefs(ctx context.Context, before time.Time, statuses []model.PaymentRefStatus, afterID uint64, limit int) ([]model.PaymentRef, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var list []model.PaymentRef
	if err := db.
		Where("status IN ? AND updated_at < ? AND id > ?", statuses, before, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RecordEvent reports false when the event id was already processed.
func (r *paymentRepository) RecordEvent(ctx context.Context, ev *model.WebhookEvent) (bool, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return false, err
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
