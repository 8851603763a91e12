package model

import "time"

type UnitState string

const (
	UnitStateInStock   UnitState = "in_stock"
	UnitStateReserved  UnitState = "reserved"
	UnitStateSold      UnitState = "sold"
	UnitStateDelivered UnitState = "delivered"
)

var unitTransitions = map[UnitState][]UnitState{
	UnitStateInStock:  {UnitStateReserved, UnitStateSold},
	UnitStateReserved: {UnitStateInStock, UnitStateSold},
	UnitStateSold:     {UnitStateDelivered},
}

// CanBecome reports whether a unit may move from s to next.
func (s UnitState) CanBecome(next UnitState) bool {
	for _, st := range unitTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// Sellable units count as stock and may be allocated to an order.
func (s UnitState) Sellable() bool {
	return s == UnitStateInStock
}

type InventoryUnit struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	ItemID      uint64    `gorm:"column:item_id;not null;index"`
	VariationID uint64    `gorm:"column:variation_id;not null;index:idx_units_variation_state,priority:1"`
	State       UnitState `gorm:"column:state;size:16;not null;default:in_stock;index:idx_units_variation_state,priority:2"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (InventoryUnit) TableName() string {
	return "inventory_units"
}
