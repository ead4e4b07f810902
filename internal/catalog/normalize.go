package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/pricing"
)

var ErrMalformedMenu = errors.New("malformed menu payload")

type envelope struct {
	Categories []domain.Category  `json:"categories"`
	Promotions []domain.Promotion `json:"promotions"`
}

// Normalize decodes a /api/menu payload. The catalog answers either with a bare list
// of categories or with an object holding "categories" and an optional "promotions"
// list. Promotions active at now are folded into the items; the largest active
// discount wins. Discounts outside (0,100] are dropped. The menu's ValidUntil is
// the nearest future promotion start or end.
func Normalize(body []byte, now time.Time) (*domain.Menu, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedMenu)
	}

	var env envelope
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &env.Categories); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMenu, err)
		}
	case '{':
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMenu, err)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected json value", ErrMalformedMenu)
	}

	best := make(map[int64]int)
	var validUntil *time.Time
	for _, p := range env.Promotions {
		if !pricing.ValidDiscount(&p.DiscountPercent) {
			continue
		}
		if next, ok := p.NextChange(now); ok && (validUntil == nil || next.Before(*validUntil)) {
			validUntil = &next
		}
		if !p.ActiveAt(now) {
			continue
		}
		if p.DiscountPercent > best[p.MenuItemID] {
			best[p.MenuItemID] = p.DiscountPercent
		}
	}

	menu := &domain.Menu{
		Categories: make([]domain.Category, 0, len(env.Categories)),
		Promotions: make([]domain.Promotion, 0, len(env.Promotions)),
		FetchedAt:  now,
		ValidUntil: validUntil,
	}
	for _, c := range env.Categories {
		items := make([]domain.MenuItem, 0, len(c.Items))
		for _, it := range c.Items {
			if it.CategoryID == 0 {
				it.CategoryID = c.ID
			}
			if !pricing.ValidDiscount(it.DiscountPercent) {
				it.DiscountPercent = nil
			}
			if promo, ok := best[it.ID]; ok && (it.DiscountPercent == nil || promo > *it.DiscountPercent) {
				v := promo
				it.DiscountPercent = &v
			}
			items = append(items, it)
		}
		c.Items = items
		menu.Categories = append(menu.Categories, c)
	}
	for _, p := range env.Promotions {
		if p.ActiveAt(now) && pricing.ValidDiscount(&p.DiscountPercent) {
			menu.Promotions = append(menu.Promotions, p)
		}
	}
	return menu, nil
}
