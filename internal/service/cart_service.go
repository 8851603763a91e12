package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const cartSaveAttempts = 3

type CartLineView struct {
	ItemID        uint64
	VariationID   uint64
	Quantity      int
	ItemName      string
	VariationName string
	Price         decimal.Decimal
	PriceSale     decimal.Decimal
	PromotionID   *uint64
	Subtotal      decimal.Decimal
}

type CartView struct {
	Lines   []CartLineView
	Total   decimal.Decimal
	Version int64
}

// CartLines returns the plain lines of the view, the shape clients keep for
// anonymous carts.
func (v *CartView) CartLines() []model.CartLine {
	out := make([]model.CartLine, 0, len(v.Lines))
	for _, l := range v.Lines {
		out = append(out, model.CartLine{ItemID: l.ItemID, VariationID: l.VariationID, Quantity: l.Quantity})
	}
	return out
}

// CartService works on the stored cart when identity is set and on the
// client-supplied lines otherwise.
type CartService interface {
	Resolve(ctx context.Context, identity string, clientLines []model.CartLine) (*CartView, error)
	Sync(ctx context.Context, identity string, clientLines []model.CartLine) (*CartView, error)
	Add(ctx context.Context, identity string, clientLines []model.CartLine, line model.CartLine) (*CartView, error)
	Update(ctx context.Context, identity string, clientLines []model.CartLine, line model.CartLine) (*CartView, error)
	Remove(ctx context.Context, identity string, clientLines []model.CartLine, itemID, variationID uint64) (*CartView, error)
	Clear(ctx context.Context, identity string) error
	CheckAvailability(ctx context.Context, item *model.Item, variationID uint64, qty int, existing []model.CartLine, isUpdate bool) (bool, error)
}

type cartService struct {
	carts     repository.CartRepository
	items     repository.ItemRepository
	inventory repository.InventoryRepository
	now       func() time.Time
}

func NewCartService(carts repository.CartRepository, items repository.ItemRepository, inventory repository.InventoryRepository) CartService {
	return &cartService{carts: carts, items: items, inventory: inventory, now: time.Now}
}

// Resolve merges stored and client lines into a priced view without writing
// anything back.
func (s *cartService) Resolve(ctx context.Context, identity string, clientLines []model.CartLine) (*CartView, error) {
	lines := clientLines
	var version int64
	if identity != "" {
		doc, err := s.carts.Get(ctx, identity)
		if err != nil {
			return nil, err
		}
		lines = append(append([]model.CartLine{}, doc.Lines...), clientLines...)
		version = doc.Version
	}
	view, err := s.resolve(ctx, lines)
	if err != nil {
		return nil, err
	}
	view.Version = version
	return view, nil
}

// Sync merges the client cart into the stored one and writes back the
// healed result.
func (s *cartService) Sync(ctx context.Context, identity string, clientLines []model.CartLine) (*CartView, error) {
	return s.mutate(ctx, identity, clientLines, func(lines []model.CartLine) ([]model.CartLine, error) {
		return append(lines, clientLines...), nil
	})
}

func (s *cartService) Add(ctx context.Context, identity string, clientLines []model.CartLine, line model.CartLine) (*CartView, error) {
	if line.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrOrderQuantity)
	}
	item, err := s.lookup(ctx, line)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, identity, clientLines, func(lines []model.CartLine) ([]model.CartLine, error) {
		ok, err := s.CheckAvailability(ctx, item, line.VariationID, line.Quantity, lines, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrOrderQuantity
		}
		for i := range lines {
			if lines[i].SameProduct(line) {
				lines[i].Quantity += line.Quantity
				return lines, nil
			}
		}
		return append(lines, line), nil
	})
}

// Update sets an absolute quantity; zero or less removes the line.
func (s *cartService) Update(ctx context.Context, identity string, clientLines []model.CartLine, line model.CartLine) (*CartView, error) {
	if line.Quantity <= 0 {
		return s.Remove(ctx, identity, clientLines, line.ItemID, line.VariationID)
	}
	item, err := s.lookup(ctx, line)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, identity, clientLines, func(lines []model.CartLine) ([]model.CartLine, error) {
		ok, err := s.CheckAvailability(ctx, item, line.VariationID, line.Quantity, lines, true)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrOrderQuantity
		}
		for i := range lines {
			if lines[i].SameProduct(line) {
				lines[i].Quantity = line.Quantity
				return lines, nil
			}
		}
		return append(lines, line), nil
	})
}

func (s *cartService) Remove(ctx context.Context, identity string, clientLines []model.CartLine, itemID, variationID uint64) (*CartView, error) {
	target := model.CartLine{ItemID: itemID, VariationID: variationID}
	return s.mutate(ctx, identity, clientLines, func(lines []model.CartLine) ([]model.CartLine, error) {
		out := lines[:0]
		for _, l := range lines {
			if !l.SameProduct(target) {
				out = append(out, l)
			}
		}
		return out, nil
	})
}

func (s *cartService) Clear(ctx context.Context, identity string) error {
	if identity == "" {
		return nil
	}
	_, err := s.mutate(ctx, identity, nil, func([]model.CartLine) ([]model.CartLine, error) {
		return []model.CartLine{}, nil
	})
	return err
}

// CheckAvailability compares against the count of in-stock units. Nothing is
// held: a concurrent checkout can still take the stock afterwards.
func (s *cartService) CheckAvailability(ctx context.Context, item *model.Item, variationID uint64, qty int, existing []model.CartLine, isUpdate bool) (bool, error) {
	stock, err := s.inventory.CountInStock(ctx, variationID)
	if err != nil {
		return false, err
	}
	want := int64(qty)
	if !isUpdate {
		probe := model.CartLine{ItemID: item.ID, VariationID: variationID}
		for _, l := range existing {
			if l.SameProduct(probe) {
				want += int64(l.Quantity)
			}
		}
	}
	return want <= stock, nil
}

func (s *cartService) lookup(ctx context.Context, line model.CartLine) (*model.Item, error) {
	item, err := s.items.FindByID(ctx, line.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidItem
		}
		return nil, err
	}
	if !item.Active {
		return nil, ErrInvalidItem
	}
	if _, ok := item.Variation(line.VariationID); !ok {
		return nil, ErrInvalidVariation
	}
	return item, nil
}

// mutate applies fn to the current lines and heals the result. Stored carts
// are saved with a version check and retried on conflict.
func (s *cartService) mutate(ctx context.Context, identity string, clientLines []model.CartLine, fn func([]model.CartLine) ([]model.CartLine, error)) (*CartView, error) {
	if identity == "" {
		lines, err := fn(mergeLines(clientLines))
		if err != nil {
			return nil, err
		}
		return s.resolve(ctx, lines)
	}
	for attempt := 1; attempt <= cartSaveAttempts; attempt++ {
		doc, err := s.carts.Get(ctx, identity)
		if err != nil {
			return nil, err
		}
		lines, err := fn(mergeLines(doc.Lines))
		if err != nil {
			return nil, err
		}
		view, err := s.resolve(ctx, lines)
		if err != nil {
			return nil, err
		}
		doc.Lines = view.CartLines()
		err = s.carts.Save(ctx, identity, doc)
		if errors.Is(err, repository.ErrCartVersion) {
			log.Printf("[cart] identity=%s stage=save_conflict attempt=%d", identity, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		view.Version = doc.Version
		return view, nil
	}
	return nil, ErrCartConflict
}

// resolve de-duplicates lines, silently drops the ones pointing at missing
// items or foreign variations and the ones exceeding live stock, and prices
// what is left.
func (s *cartService) resolve(ctx context.Context, lines []model.CartLine) (*CartView, error) {
	lines = mergeLines(lines)
	view := &CartView{Lines: []CartLineView{}, Total: decimal.Zero}
	if len(lines) == 0 {
		return view, nil
	}

	itemIDs := make([]uint64, 0, len(lines))
	seen := make(map[uint64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ItemID] {
			seen[l.ItemID] = true
			itemIDs = append(itemIDs, l.ItemID)
		}
	}
	items, err := s.items.FindByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	valid := lines[:0]
	variationIDs := make([]uint64, 0, len(lines))
	for _, l := range lines {
		item, ok := byID[l.ItemID]
		if !ok || !item.Active {
			continue
		}
		if _, ok := item.Variation(l.VariationID); !ok {
			continue
		}
		valid = append(valid, l)
		variationIDs = append(variationIDs, l.VariationID)
	}
	stock, err := s.inventory.CountInStockByVariations(ctx, variationIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, l := range valid {
		if int64(l.Quantity) > stock[l.VariationID] {
			log.Printf("[cart] item=%d variation=%d stage=heal qty=%d stock=%d", l.ItemID, l.VariationID, l.Quantity, stock[l.VariationID])
			continue
		}
		item := byID[l.ItemID]
		variation, _ := item.Variation(l.VariationID)
		quote := ResolvePrice(item, now)
		subtotal := quote.PriceSale.Mul(decimal.NewFromInt(int64(l.Quantity)))
		view.Lines = append(view.Lines, CartLineView{
			ItemID:        l.ItemID,
			VariationID:   l.VariationID,
			Quantity:      l.Quantity,
			ItemName:      item.Name,
			VariationName: variation.Name,
			Price:         quote.Price,
			PriceSale:     quote.PriceSale,
			PromotionID:   quote.PromotionID,
			Subtotal:      subtotal,
		})
		view.Total = view.Total.Add(subtotal)
	}
	return view, nil
}

// mergeLines keeps one line per item variation, taking the larger quantity so
// that syncing the same client cart twice is a no-op. Non-positive quantities
// are dropped.
func mergeLines(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		merged := false
		for i := range out {
			if out[i].SameProduct(l) {
				if l.Quantity > out[i].Quantity {
					out[i].Quantity = l.Quantity
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, l)
		}
	}
	return out
}
