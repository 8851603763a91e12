package model

import "time"

type NotificationType string

const (
	NotificationOrderPaid      NotificationType = "order_paid"
	NotificationOrderRejected  NotificationType = "order_rejected"
	NotificationOrderVerified  NotificationType = "order_verified"
	NotificationOrderDelivered NotificationType = "order_delivered"
	NotificationOrderCanceled  NotificationType = "order_canceled"
)

// Notification tells a customer their order changed status.
type Notification struct {
	ID         uint64           `gorm:"primaryKey;autoIncrement"`
	CustomerID string           `gorm:"column:customer_id;size:128;index;not null"`
	Type       NotificationType `gorm:"column:type;size:32;not null"`
	OrderID    string           `gorm:"column:order_id;size:36;index"`
	Title      string           `gorm:"column:title;size:255"`
	Body       string           `gorm:"column:body;type:text"`
	ReadAt     *time.Time       `gorm:"column:read_at"`
	CreatedAt  time.Time        `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
