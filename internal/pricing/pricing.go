// Package pricing computes effective prices and totals in integer cents.
// Everything here is pure; the order backend stays authoritative for the charged total.
package pricing

import "github.com/fjod/cafe_cart/domain"

// Summary is a display breakdown of a set of cart lines.
type Summary struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
	ItemCount     int   `json:"item_count"`
}

// PricedItem is a menu item as shown to shoppers, with its effective price.
type PricedItem struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	CategoryID          int64  `json:"category_id,omitempty"`
	Available           bool   `json:"available"`
	PriceCents          int64  `json:"price_cents"`
	DiscountPercent     *int   `json:"discount_percent,omitempty"`
	EffectivePriceCents int64  `json:"effective_price_cents"`
	HasDiscount         bool   `json:"has_discount"`
	Image               string `json:"image,omitempty"`
	ImageURL            string `json:"image_url"`
}

func NewPricedItem(item domain.MenuItem) PricedItem {
	return PricedItem{
		ID:                  item.ID,
		Name:                item.Name,
		Description:         item.Description,
		CategoryID:          item.CategoryID,
		Available:           item.Available,
		PriceCents:          item.PriceCents,
		DiscountPercent:     item.DiscountPercent,
		EffectivePriceCents: EffectivePrice(item),
		HasDiscount:         ValidDiscount(item.DiscountPercent),
		Image:               item.Image,
		ImageURL:            item.ImageURL(),
	}
}

type PricedCategory struct {
	ID    int64        `json:"id"`
	Name  string       `json:"name"`
	Items []PricedItem `json:"items"`
}

// ValidDiscount reports whether percent is an applicable discount, i.e. in (0,100].
func ValidDiscount(percent *int) bool {
	return percent != nil && *percent > 0 && *percent <= 100
}

// Apply returns priceCents reduced by percent. The remainder of the division by 100
// is discarded.
func Apply(priceCents int64, percent *int) int64 {
	if !ValidDiscount(percent) {
		return priceCents
	}
	return priceCents * int64(100-*percent) / 100
}

func EffectivePrice(item domain.MenuItem) int64 {
	return Apply(item.PriceCents, item.DiscountPercent)
}

// LinePrice is the effective unit price of a cart line.
func LinePrice(line domain.CartLine) int64 {
	return Apply(line.PriceCents, line.DiscountPercent)
}

func LineTotal(line domain.CartLine) int64 {
	return LinePrice(line) * int64(line.Quantity)
}

func CartTotal(lines []domain.CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += LineTotal(l)
	}
	return total
}

func Summarize(lines []domain.CartLine) Summary {
	var s Summary
	for _, l := range lines {
		s.SubtotalCents += l.PriceCents * int64(l.Quantity)
		s.TotalCents += LineTotal(l)
		s.ItemCount += l.Quantity
	}
	s.DiscountCents = s.SubtotalCents - s.TotalCents
	return s
}

// Annotate builds a priced view of the menu. The menu itself is not modified.
func Annotate(menu *domain.Menu) []PricedCategory {
	if menu == nil {
		return []PricedCategory{}
	}
	out := make([]PricedCategory, 0, len(menu.Categories))
	for _, c := range menu.Categories {
		pc := PricedCategory{ID: c.ID, Name: c.Name, Items: make([]PricedItem, 0, len(c.Items))}
		for _, it := range c.Items {
			pc.Items = append(pc.Items, NewPricedItem(it))
		}
		out = append(out, pc)
	}
	return out
}
