package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// cardImages are served by the catalog under /api/images/ and used for items without an image.
var cardImages = []string{
	"gallery-ribeye-steak.webp",
	"gallery-special-event.webp",
}

type MenuItem struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	PriceCents      int64  `json:"price_cents"`
	DiscountPercent *int   `json:"discount_percent,omitempty"`
	CategoryID      int64  `json:"category_id,omitempty"`
	Available       bool   `json:"available"`
	Image           string `json:"image,omitempty"`
}

// UnmarshalJSON treats a missing "available" field as available.
func (m *MenuItem) UnmarshalJSON(data []byte) error {
	type alias MenuItem
	aux := struct {
		*alias
		Available *bool `json:"available"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Available = aux.Available == nil || *aux.Available
	return nil
}

// ImageURL returns the catalog image path for the item.
func (m MenuItem) ImageURL() string {
	name := m.Image
	if name == "" {
		idx := m.ID % int64(len(cardImages))
		if idx < 0 {
			idx = -idx
		}
		name = cardImages[idx]
	}
	return fmt.Sprintf("/api/images/%s", name)
}

type Category struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// Promotion is a time-limited discount on a single menu item.
// Nil bounds are open.
type Promotion struct {
	MenuItemID      int64      `json:"menu_item_id"`
	DiscountPercent int        `json:"discount_percent"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
}

// ActiveAt reports whether the promotion window contains t.
func (p Promotion) ActiveAt(t time.Time) bool {
	if p.StartsAt != nil && t.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && !t.Before(*p.EndsAt) {
		return false
	}
	return true
}

// NextChange returns the first start or end of the window strictly after t.
func (p Promotion) NextChange(t time.Time) (time.Time, bool) {
	if p.StartsAt != nil && p.StartsAt.After(t) {
		return *p.StartsAt, true
	}
	if p.EndsAt != nil && p.EndsAt.After(t) {
		return *p.EndsAt, true
	}
	return time.Time{}, false
}

// Menu is the normalized catalog snapshot.
type Menu struct {
	Categories []Category  `json:"categories"`
	Promotions []Promotion `json:"promotions"`
	FetchedAt  time.Time   `json:"fetched_at"`

	// ValidUntil is when a promotion starts or ends and the folded discounts stop
	// being correct. Nil means no scheduled change.
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Expired reports whether the discounts in the menu are out of date at t.
func (m *Menu) Expired(t time.Time) bool {
	return m != nil && m.ValidUntil != nil && !t.Before(*m.ValidUntil)
}

func (m *Menu) FindItem(id int64) (MenuItem, bool) {
	if m == nil {
		return MenuItem{}, false
	}
	for _, c := range m.Categories {
		for _, it := range c.Items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return MenuItem{}, false
}
