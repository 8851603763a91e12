package model

type CartLine struct {
	ItemID      uint64 `json:"itemId"`
	VariationID uint64 `json:"variationId"`
	Quantity    int    `json:"quantity"`
}

// SameProduct reports whether both lines point at the same item variation.
func (l CartLine) SameProduct(o CartLine) bool {
	return l.ItemID == o.ItemID && l.VariationID == o.VariationID
}

// CartDocument is the cached cart of one identity. Version is bumped on every
// successful save and checked on the next one.
type CartDocument struct {
	Lines   []CartLine `json:"cart"`
	Version int64      `json:"version"`
}
