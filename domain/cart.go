package domain

import "time"

// CartLine is one entry of a cart. Name, price and discount are copied from the
// menu item so the cart can be rendered without a catalog lookup.
type CartLine struct {
	MenuItemID      int64     `json:"menu_item_id"`
	Quantity        int       `json:"qty"`
	Name            string    `json:"name"`
	PriceCents      int64     `json:"price_cents"`
	DiscountPercent *int      `json:"discount_percent,omitempty"`
	AddedAt         time.Time `json:"added_at"`
}
