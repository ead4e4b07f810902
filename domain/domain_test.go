package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMenuItem_UnmarshalAvailableDefaultsToTrue(t *testing.T) {
	var item MenuItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"name":"Latte","price_cents":450}`), &item))
	assert.True(t, item.Available)
	assert.Equal(t, int64(450), item.PriceCents)
	assert.Nil(t, item.DiscountPercent)

	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"available":false,"discount_percent":10}`), &item))
	assert.False(t, item.Available)
	require.NotNil(t, item.DiscountPercent)
	assert.Equal(t, 10, *item.DiscountPercent)
}

func TestMenuItem_ImageURL(t *testing.T) {
	assert.Equal(t, "/api/images/latte.webp", MenuItem{ID: 1, Image: "latte.webp"}.ImageURL())
	assert.Equal(t, "/api/images/gallery-ribeye-steak.webp", MenuItem{ID: 2}.ImageURL())
	assert.Equal(t, "/api/images/gallery-special-event.webp", MenuItem{ID: 3}.ImageURL())
}

func TestPromotion_ActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	assert.True(t, Promotion{}.ActiveAt(now))
	assert.True(t, Promotion{StartsAt: &before, EndsAt: &after}.ActiveAt(now))
	assert.False(t, Promotion{StartsAt: &after}.ActiveAt(now))
	assert.False(t, Promotion{EndsAt: &before}.ActiveAt(now))
	assert.False(t, Promotion{EndsAt: &now}.ActiveAt(now), "end bound is exclusive")
}

func TestPromotion_NextChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)
	later := now.Add(2 * time.Hour)

	next, ok := Promotion{StartsAt: &after, EndsAt: &later}.NextChange(now)
	require.True(t, ok)
	assert.Equal(t, after, next)

	next, ok = Promotion{StartsAt: &before, EndsAt: &later}.NextChange(now)
	require.True(t, ok)
	assert.Equal(t, later, next)

	_, ok = Promotion{EndsAt: &before}.NextChange(now)
	assert.False(t, ok)
	_, ok = Promotion{}.NextChange(now)
	assert.False(t, ok)
}

func TestMenu_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)

	assert.False(t, (&Menu{}).Expired(now))
	assert.False(t, (*Menu)(nil).Expired(now))
	assert.False(t, (&Menu{ValidUntil: &until}).Expired(now))
	assert.True(t, (&Menu{ValidUntil: &until}).Expired(until))
}

func TestMenu_FindItem(t *testing.T) {
	menu := &Menu{Categories: []Category{
		{ID: 1, Items: []MenuItem{{ID: 10, Name: "Espresso"}}},
		{ID: 2, Items: []MenuItem{{ID: 20, Name: "Croissant"}}},
	}}

	item, ok := menu.FindItem(20)
	require.True(t, ok)
	assert.Equal(t, "Croissant", item.Name)

	_, ok = menu.FindItem(99)
	assert.False(t, ok)

	var nilMenu *Menu
	_, ok = nilMenu.FindItem(10)
	assert.False(t, ok)
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(CheckoutStateIdle, CheckoutStateValidating))
	assert.True(t, CanTransitionTo(CheckoutStateSubmitting, CheckoutStateSucceeded))
	assert.True(t, CanTransitionTo(CheckoutStateFailed, CheckoutStateIdle))
	assert.False(t, CanTransitionTo(CheckoutStateIdle, CheckoutStateSubmitting))
	assert.False(t, CanTransitionTo(CheckoutStateSubmitting, CheckoutStateIdle))

	assert.True(t, CheckoutStateFailed.IsTerminal())
	assert.False(t, CheckoutStateSubmitting.IsTerminal())
	assert.True(t, CheckoutStateSubmitting.InFlight())
}
