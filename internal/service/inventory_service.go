package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"gorm.io/gorm"
)

const maxStockBatch = 1000

// Allocator binds concrete inventory units to an order's lines.
type Allocator interface {
	Allocate(ctx context.Context, o *model.Order, selections []UnitSelection, verifierID string) error
}

type InventoryService interface {
	Allocator
	ListUnits(ctx context.Context, variationID uint64, state model.UnitState) ([]model.InventoryUnit, error)
	StockUnits(ctx context.Context, itemID, variationID uint64, count int) ([]model.InventoryUnit, error)
	HoldUnit(ctx context.Context, unitID uint64) (*model.InventoryUnit, error)
	ReleaseUnit(ctx context.Context, unitID uint64) (*model.InventoryUnit, error)
}

type inventoryService struct {
	tx        repository.Transactor
	inventory repository.InventoryRepository
	orders    repository.OrderRepository
	items     repository.ItemRepository
	now       func() time.Time
}

func NewInventoryService(tx repository.Transactor, inventory repository.InventoryRepository, orders repository.OrderRepository, items repository.ItemRepository) InventoryService {
	return &inventoryService{tx: tx, inventory: inventory, orders: orders, items: items, now: time.Now}
}

// Allocate validates every selection before writing anything: the submitted
// variations must cover the order lines exactly, each unit must be of the
// stated variation and still in stock. Units are row-locked for the
// validation and moved in_stock->sold with a state-guarded update in the same
// transaction that flips the order to verified.
func (s *inventoryService) Allocate(ctx context.Context, o *model.Order, selections []UnitSelection, verifierID string) error {
	if !matchesDetails(o.Details, selections) {
		return ErrOrderDetailMismatch
	}
	unitIDs := make([]uint64, 0, len(selections))
	seen := make(map[uint64]bool, len(selections))
	for _, sel := range selections {
		if seen[sel.InventoryUnitID] {
			return fmt.Errorf("%w: unit %d selected twice", ErrInventoryUnavailable, sel.InventoryUnitID)
		}
		seen[sel.InventoryUnitID] = true
		unitIDs = append(unitIDs, sel.InventoryUnitID)
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		units, err := s.inventory.FindByIDsForUpdate(ctx, unitIDs)
		if err != nil {
			return err
		}
		byID := make(map[uint64]model.InventoryUnit, len(units))
		for _, u := range units {
			byID[u.ID] = u
		}
		for _, sel := range selections {
			u, ok := byID[sel.InventoryUnitID]
			if !ok {
				return fmt.Errorf("%w: unit %d", ErrInvalidUnit, sel.InventoryUnitID)
			}
			if u.VariationID != sel.VariationID {
				return fmt.Errorf("%w: unit %d", ErrInventoryWrongVariation, u.ID)
			}
		}
		for _, sel := range selections {
			if u := byID[sel.InventoryUnitID]; !u.State.Sellable() {
				return fmt.Errorf("%w: unit %d is %s", ErrInventoryUnavailable, u.ID, u.State)
			}
		}

		now := s.now().UTC()
		n, err := s.orders.TransitionStatus(ctx, o.ID, model.OrderStatusOrdered, model.OrderStatusVerified, map[string]interface{}{
			"verifier_id": verifierID,
			"verified_at": now,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrOrderForbidden
		}
		moved, err := s.inventory.TransitionState(ctx, unitIDs, model.UnitStateInStock, model.UnitStateSold)
		if err != nil {
			return err
		}
		if moved != int64(len(unitIDs)) {
			return ErrInventoryUnavailable
		}
		return s.orders.CreateAllocations(ctx, bindUnits(o, selections))
	})
}

func (s *inventoryService) ListUnits(ctx context.Context, variationID uint64, state model.UnitState) ([]model.InventoryUnit, error) {
	if state == "" {
		state = model.UnitStateInStock
	}
	return s.inventory.ListByVariation(ctx, variationID, state)
}

// StockUnits adds count fresh in-stock units of a variation.
func (s *inventoryService) StockUnits(ctx context.Context, itemID, variationID uint64, count int) ([]model.InventoryUnit, error) {
	if count <= 0 || count > maxStockBatch {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidQuantity, maxStockBatch)
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidItem
		}
		return nil, err
	}
	if _, ok := item.Variation(variationID); !ok {
		return nil, ErrInvalidVariation
	}
	units := make([]model.InventoryUnit, count)
	for i := range units {
		units[i] = model.InventoryUnit{ItemID: itemID, VariationID: variationID, State: model.UnitStateInStock}
	}
	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.inventory.CreateBatch(ctx, units)
	}); err != nil {
		return nil, err
	}
	log.Printf("[inventory] item=%d variation=%d stage=stocked count=%d", itemID, variationID, count)
	return units, nil
}

func (s *inventoryService) HoldUnit(ctx context.Context, unitID uint64) (*model.InventoryUnit, error) {
	return s.moveUnit(ctx, unitID, model.UnitStateInStock, model.UnitStateReserved)
}

func (s *inventoryService) ReleaseUnit(ctx context.Context, unitID uint64) (*model.InventoryUnit, error) {
	return s.moveUnit(ctx, unitID, model.UnitStateReserved, model.UnitStateInStock)
}

func (s *inventoryService) moveUnit(ctx context.Context, unitID uint64, from, to model.UnitState) (*model.InventoryUnit, error) {
	u, err := s.inventory.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidUnit
		}
		return nil, err
	}
	if u.State != from || !from.CanBecome(to) {
		return nil, fmt.Errorf("%w: unit %d is %s", ErrInventoryUnavailable, u.ID, u.State)
	}
	n, err := s.inventory.TransitionState(ctx, []uint64{unitID}, from, to)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrInventoryUnavailable
	}
	u.State = to
	return u, nil
}

// matchesDetails compares the multiset of submitted variations against the
// order lines expanded by quantity.
func matchesDetails(details []model.OrderDetail, selections []UnitSelection) bool {
	want := make(map[uint64]int, len(details))
	for _, d := range details {
		want[d.VariationID] += d.Quantity
	}
	for _, sel := range selections {
		want[sel.VariationID]--
	}
	for _, n := range want {
		if n != 0 {
			return false
		}
	}
	return true
}

// bindUnits hands each selected unit to the first line of its variation that
// still has room.
func bindUnits(o *model.Order, selections []UnitSelection) []model.OrderAllocation {
	room := make([]int, len(o.Details))
	for i, d := range o.Details {
		room[i] = d.Quantity
	}
	out := make([]model.OrderAllocation, 0, len(selections))
	for _, sel := range selections {
		for i, d := range o.Details {
			if d.VariationID != sel.VariationID || room[i] == 0 {
				continue
			}
			room[i]--
			out = append(out, model.OrderAllocation{
				OrderID:         o.ID,
				OrderDetailID:   d.ID,
				InventoryUnitID: sel.InventoryUnitID,
			})
			break
		}
	}
	return out
}
