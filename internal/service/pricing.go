package service

import (
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type PriceQuote struct {
	Price       decimal.Decimal
	PriceSale   decimal.Decimal
	PromotionID *uint64
}

// ResolvePrice applies the first linked promotion active at now, in link
// order. Overlapping promotions are not compared; the earlier link wins even
// if a later one is steeper.
func ResolvePrice(item *model.Item, now time.Time) PriceQuote {
	q := PriceQuote{Price: item.Price, PriceSale: item.Price}
	for _, link := range item.PromotionLinks {
		promo := link.Promotion
		if !promo.ActiveAt(now) {
			continue
		}
		q.PriceSale = item.Price.Mul(hundred.Sub(promo.OffPercent)).Div(hundred).Round(2)
		id := promo.ID
		q.PromotionID = &id
		break
	}
	return q
}
