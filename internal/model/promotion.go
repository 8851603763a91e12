package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Promotion struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	Name       string          `gorm:"size:255;not null"`
	TimeStart  time.Time       `gorm:"column:time_start;not null"`
	TimeEnd    time.Time       `gorm:"column:time_end;not null"`
	OffPercent decimal.Decimal `gorm:"column:off_percent;type:decimal(5,2);not null"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (Promotion) TableName() string {
	return "promotions"
}

// ActiveAt reports whether t falls inside [TimeStart, TimeEnd).
func (p Promotion) ActiveAt(t time.Time) bool {
	return !t.Before(p.TimeStart) && t.Before(p.TimeEnd)
}

type PromotionLink struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	PromotionID uint64    `gorm:"column:promotion_id;not null;index"`
	ItemID      uint64    `gorm:"column:item_id;not null;index"`
	Promotion   Promotion `gorm:"foreignKey:PromotionID"`
}

func (PromotionLink) TableName() string {
	return "promotion_links"
}
