package model

import "time"

// Customer is keyed by the identity provider uid.
type Customer struct {
	ID        string    `gorm:"primaryKey;size:128"`
	Name      string    `gorm:"size:255"`
	Email     string    `gorm:"size:255"`
	Phone     string    `gorm:"size:32"`
	Address   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Customer) TableName() string {
	return "customers"
}
