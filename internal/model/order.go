package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOrdered    OrderStatus = "ordered"
	OrderStatusVerified   OrderStatus = "verified"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCanceled   OrderStatus = "canceled"
	OrderStatusRejected   OrderStatus = "rejected"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusOrdered, OrderStatusRejected},
	OrderStatusOrdered:    {OrderStatusVerified, OrderStatusCanceled},
	OrderStatusVerified:   {OrderStatusDelivered},
}

// CanBecome reports whether the order state machine has an edge from s to next.
func (s OrderStatus) CanBecome(next OrderStatus) bool {
	for _, st := range orderTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

type OrderChannel string

const (
	OrderChannelPOS    OrderChannel = "pos"
	OrderChannelCOD    OrderChannel = "cod"
	OrderChannelOnline OrderChannel = "online"
)

type Order struct {
	ID                 string           `gorm:"primaryKey;size:36"`
	CustomerID         string           `gorm:"column:customer_id;size:128;index;not null"`
	VerifierID         *string          `gorm:"column:verifier_id;size:128"`
	Status             OrderStatus      `gorm:"column:status;size:16;index;not null"`
	Channel            OrderChannel     `gorm:"column:channel;size:16;not null"`
	TotalPrice         decimal.Decimal  `gorm:"column:total_price;type:decimal(14,2);not null"`
	AppliedPromotionID *uint64          `gorm:"column:applied_promotion_id"`
	DownPayment        *decimal.Decimal `gorm:"column:down_payment;type:decimal(14,2)"`
	LoanTerm           *int             `gorm:"column:loan_term"`
	APR                *decimal.Decimal `gorm:"column:apr;type:decimal(6,3)"`
	LoanPayment        *decimal.Decimal `gorm:"column:loan_payment;type:decimal(14,2)"`
	PayeeName          string           `gorm:"column:payee_name;size:255"`
	PayeePhone         string           `gorm:"column:payee_phone;size:32"`
	PayeeEmail         string           `gorm:"column:payee_email;size:255"`
	PayeeAddress       string           `gorm:"column:payee_address;type:text"`
	Details            []OrderDetail    `gorm:"foreignKey:OrderID"`
	Payments           []OrderPayment   `gorm:"foreignKey:OrderID"`
	VerifiedAt         *time.Time       `gorm:"column:verified_at"`
	DeliveredAt        *time.Time       `gorm:"column:delivered_at"`
	CreatedAt          time.Time        `gorm:"autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}

// HasLoan reports whether the order was placed with financing terms.
func (o *Order) HasLoan() bool {
	return o.DownPayment != nil && o.LoanTerm != nil && o.APR != nil
}

// AmountDueNow is what the first payment row collects: the down payment for
// financed orders, the full total otherwise.
func (o *Order) AmountDueNow() decimal.Decimal {
	if o.DownPayment != nil {
		return *o.DownPayment
	}
	return o.TotalPrice
}

// OrderDetail snapshots name and price at order time.
type OrderDetail struct {
	ID            uint64            `gorm:"primaryKey;autoIncrement"`
	OrderID       string            `gorm:"column:order_id;size:36;index;not null"`
	ItemID        uint64            `gorm:"column:item_id;not null"`
	VariationID   uint64            `gorm:"column:variation_id;not null"`
	ItemName      string            `gorm:"column:item_name;size:255;not null"`
	VariationName string            `gorm:"column:variation_name;size:120"`
	Price         decimal.Decimal   `gorm:"column:price;type:decimal(14,2);not null"`
	PriceSale     decimal.Decimal   `gorm:"column:price_sale;type:decimal(14,2);not null"`
	PromotionID   *uint64           `gorm:"column:promotion_id"`
	Quantity      int               `gorm:"column:quantity;not null"`
	Allocations   []OrderAllocation `gorm:"foreignKey:OrderDetailID"`
	CreatedAt     time.Time         `gorm:"autoCreateTime"`
}

func (OrderDetail) TableName() string {
	return "order_details"
}

// OrderAllocation binds one inventory unit to one order detail. The unique
// index on inventory_unit_id keeps a unit from ever appearing in two orders.
type OrderAllocation struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	OrderID         string    `gorm:"column:order_id;size:36;index;not null"`
	OrderDetailID   uint64    `gorm:"column:order_detail_id;index;not null"`
	InventoryUnitID uint64    `gorm:"column:inventory_unit_id;uniqueIndex;not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (OrderAllocation) TableName() string {
	return "order_allocations"
}

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
)

// OrderPayment is one amount due on an order. Installment 0 is the payment
// collected at checkout; 1.. are loan installments.
type OrderPayment struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	OrderID     string          `gorm:"column:order_id;size:36;not null;uniqueIndex:idx_order_payments_installment,priority:1"`
	Installment int             `gorm:"column:installment;not null;uniqueIndex:idx_order_payments_installment,priority:2"`
	Method      PaymentMethod   `gorm:"column:method;size:16;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null"`
	IsPaid      bool            `gorm:"column:is_paid;not null;default:false"`
	DueDate     time.Time       `gorm:"column:due_date;not null"`
	PaidAt      *time.Time      `gorm:"column:paid_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

func (OrderPayment) TableName() string {
	return "order_payments"
}
