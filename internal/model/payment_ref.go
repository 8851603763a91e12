package model

import "time"

type PaymentRefStatus string

const (
	PaymentRefPending         PaymentRefStatus = "pending"
	PaymentRefAwaitingPayment PaymentRefStatus = "awaiting_payment"
	PaymentRefSucceeded       PaymentRefStatus = "succeeded"
	PaymentRefFailed          PaymentRefStatus = "failed"
	PaymentRefAbandoned       PaymentRefStatus = "abandoned"
)

// PaymentRef maps a local order to the gateway payment intent collecting it.
type PaymentRef struct {
	ID          uint64           `gorm:"primaryKey;autoIncrement"`
	OrderID     string           `gorm:"column:order_id;size:36;uniqueIndex;not null"`
	IntentID    *string          `gorm:"column:intent_id;size:255;uniqueIndex"`
	Status      PaymentRefStatus `gorm:"column:status;size:24;index;not null"`
	AmountMinor int64            `gorm:"column:amount_minor"`
	Currency    string           `gorm:"column:currency;size:8;not null"`
	CreatedAt   time.Time        `gorm:"autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime"`
}

func (PaymentRef) TableName() string {
	return "payment_refs"
}

// WebhookEvent records each processed gateway event id once.
type WebhookEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey;size:255"`
	EventType   string    `gorm:"column:event_type;size:64;index"`
	IntentID    string    `gorm:"column:intent_id;size:255;index"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
