package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	Name           string          `gorm:"size:255;not null"`
	Price          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Active         bool            `gorm:"not null;default:true"`
	Variations     []Variation     `gorm:"foreignKey:ItemID"`
	PromotionLinks []PromotionLink `gorm:"foreignKey:ItemID"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}

// Variation returns the variation with the given id if it belongs to the item.
func (i *Item) Variation(id uint64) (*Variation, bool) {
	for k := range i.Variations {
		if i.Variations[k].ID == id {
			return &i.Variations[k], true
		}
	}
	return nil, false
}

type Variation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ItemID    uint64    `gorm:"column:item_id;not null;index:idx_variations_item_id"`
	Name      string    `gorm:"size:120;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Variation) TableName() string {
	return "variations"
}
