package repository

import (
	"context"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByCustomer(ctx context.Context, customerID string, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkAllRead(ctx context.Context, customerID string, at time.Time) error
	CountUnread(ctx context.Context, customerID string) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Create(n).Error
}

func (r *notificationRepository) ListByCustomer(ctx context.Context, customerID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	q := db.Model(&model.Notification{}).Where("customer_id = ?", customerID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var list []model.Notification
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, customerID string, at time.Time) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Model(&model.Notification{}).
		Where("customer_id = ? AND read_at IS NULL", customerID).
		Update("read_at", at).Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, customerID string) (int64, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, err
	}
	var cnt int64
	if err := db.Model(&model.Notification{}).
		Where("customer_id = ? AND read_at IS NULL", customerID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
